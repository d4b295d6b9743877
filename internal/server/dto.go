package server

import (
	"github.com/tartampluch/go-shamsi/internal/events"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

// dayResponse describes a single day in both calendars.
type dayResponse struct {
	Jalali      jalali.Date          `json:"jalali"`
	Gregorian   jalali.GregorianDate `json:"gregorian"`
	JDN         jalali.JDN           `json:"jdn"`
	Weekday     string               `json:"weekday"`
	Formatted   string               `json:"formatted"`
	LeapYear    bool                 `json:"leap_year"`
	MonthLength int                  `json:"month_length"`
	Events      []string             `json:"events,omitempty"`
}

type monthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type cellResponse struct {
	jalali.Cell
	Gregorian jalali.GregorianDate `json:"gregorian"`
	Events    []string             `json:"events,omitempty"`
}

// monthResponse is a 6x7 Saturday-first grid.
type monthResponse struct {
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	MonthName   string         `json:"month_name"`
	MonthLength int            `json:"month_length"`
	LeadingDays int            `json:"leading_days"`
	LeapYear    bool           `json:"leap_year"`
	Weekdays    []string       `json:"weekdays"`
	Prev        monthRef       `json:"prev"`
	Next        monthRef       `json:"next"`
	Cells       []cellResponse `json:"cells"`
}

type eventsResponse struct {
	Date   jalali.Date    `json:"date"`
	Events []events.Event `json:"events"`
}

type noteRequest struct {
	Text string `json:"text"`
}

type errResponse struct {
	Error string `json:"error"`
}
