// Package mcpserver exposes the Jalali calendar engine as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/engine"
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// Source provides the event set used to flag grid cells.
type Source interface {
	Snapshot(ctx context.Context) (events.Set, error)
}

// Server wraps the MCP server with the calendar tools.
type Server struct {
	mcp    *server.MCPServer
	clock  engine.Clock
	offset time.Duration
	source Source
}

// New creates an MCP server with every calendar tool registered.
// source may be nil, in which case no day carries events.
func New(clock engine.Clock, offset time.Duration, source Source) *Server {
	s := &Server{clock: clock, offset: offset, source: source}

	s.mcp = server.NewMCPServer(
		config.AppName,
		config.Version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("to_jalali",
		mcp.WithDescription("Convert a Gregorian date (YYYY-MM-DD) to the Jalali calendar."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Gregorian date, e.g. 2024-03-20")),
	), s.toJalali)

	s.mcp.AddTool(mcp.NewTool("to_gregorian",
		mcp.WithDescription("Convert a Jalali date (YYYY/MM/DD) to the Gregorian calendar."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Jalali date, e.g. 1403/01/01")),
	), s.toGregorian)

	s.mcp.AddTool(mcp.NewTool("month_length",
		mcp.WithDescription("Number of days in a Jalali month, honouring leap years."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Jalali year")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Jalali month, 1-12")),
	), s.monthLength)

	s.mcp.AddTool(mcp.NewTool("month_grid",
		mcp.WithDescription("Saturday-first 6x7 grid of a Jalali month, including "+
			"the trailing days of the previous month and the leading days of the next."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Jalali year")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Jalali month, 1-12")),
	), s.monthGrid)

	s.mcp.AddTool(mcp.NewTool("today",
		mcp.WithDescription("Today's date in both calendars at the configured UTC offset."),
	), s.today)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type conversion struct {
	Jalali    jalali.Date          `json:"jalali"`
	Gregorian jalali.GregorianDate `json:"gregorian"`
	Weekday   string               `json:"weekday"`
	LeapYear  bool                 `json:"leap_year"`
}

func describe(d jalali.Date) (conversion, error) {
	jdn, err := jalali.JalaliToJDN(d)
	if err != nil {
		return conversion{}, err
	}
	return conversion{
		Jalali:    d,
		Gregorian: jalali.JDNToGregorian(jdn),
		Weekday:   jalali.Weekday(jdn).String(),
		LeapYear:  jalali.IsLeap(d.Year),
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) toJalali(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := jalali.ParseGregorian(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := jalali.ToJalali(g)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := describe(d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func (s *Server) toGregorian(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := jalali.ParseDate(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := describe(d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func yearMonth(req mcp.CallToolRequest) (int, int, error) {
	jy, err := req.RequireInt("year")
	if err != nil {
		return 0, 0, err
	}
	jm, err := req.RequireInt("month")
	if err != nil {
		return 0, 0, err
	}
	return jy, jm, nil
}

func (s *Server) monthLength(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jy, jm, err := yearMonth(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := jalali.MonthLength(jy, jm)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprint(n)), nil
}

func (s *Server) monthGrid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jy, jm, err := yearMonth(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var has jalali.EventPredicate
	if s.source != nil {
		set, err := s.source.Snapshot(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		has = set.Has
	}

	grid, err := jalali.BuildMonthGrid(jy, jm, engine.Today(s.clock, s.offset), has)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(grid.Weeks())
}

func (s *Server) today(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := describe(engine.Today(s.clock, s.offset))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}
