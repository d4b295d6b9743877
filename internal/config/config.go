package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-Shamsi/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName        = "Go Shamsi"
	AppID          = "com.github.tartampluch.go-shamsi"
	KeyringService = "com.github.tartampluch.go-shamsi"
	CLIName        = "go-shamsi"
	CLIUsage       = "Jalali calendar engine, month grids and event feed"
	LogFileName    = "app.log"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags, Commands & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion = "version"
	FlagDebug   = "debug"
	FlagConfig  = "config"
	FlagOutput  = "output"
	FlagUser    = "user"
	FlagLang    = "lang"
	FlagTitle   = "title"
	FlagYearly  = "yearly"

	FlagDescVersion = "Show application version and exit"
	FlagDescDebug   = "Enable debug logging to stdout"
	FlagDescConfig  = "Path to the YAML settings file"
	FlagDescOutput  = "Write the generated iCalendar feed to this file"
	FlagDescUser    = "Account name the password is stored under"
	FlagDescLang    = "Display language (overrides settings)"
	FlagDescTitle   = "Event text; empty removes the note"
	FlagDescYearly  = "Repeat the event every Jalali year"

	EnvConfigFile = "GO_SHAMSI_CONFIG"

	CmdServe       = "serve"
	CmdConvert     = "convert"
	CmdToJalali    = "to-jalali"
	CmdToGregorian = "to-gregorian"
	CmdMonth       = "month"
	CmdEvent       = "event"
	CmdEventSet    = "set"
	CmdEventRemove = "rm"
	CmdEventList   = "ls"
	CmdSync        = "sync"
	CmdCredentials = "credentials"
	CmdCredSet     = "set"
	CmdMCP         = "mcp"

	CmdDescServe       = "Serve the iCalendar feed and JSON API (default)"
	CmdDescConvert     = "Convert a date between the Gregorian and Jalali calendars"
	CmdDescToJalali    = "Convert a Gregorian YYYY-MM-DD date"
	CmdDescToGregorian = "Convert a Jalali YYYY/MM/DD date"
	CmdDescMonth       = "Print the grid of a Jalali month (YYYY/MM, default: current)"
	CmdDescEvent       = "Manage day notes and yearly events"
	CmdDescEventSet    = "Set the note of a Jalali day"
	CmdDescEventRemove = "Remove the note of a Jalali day"
	CmdDescEventList   = "List events, optionally for one Jalali day"
	CmdDescSync        = "Import birthdays once and render the feed"
	CmdDescCredentials = "Manage the remote vCard password"
	CmdDescCredSet     = "Store the password in the system keyring"
	CmdDescMCP         = "Serve calendar tools over MCP stdio"

	ArgDate      = "DATE"
	ArgMonth     = "YEAR/MONTH"
	SettingsFile = "settings.yaml"
	YearlyPrefix = "yearly-"

	MsgVersionOutput  = "%s version %s (%s/%s)\n"
	MsgPasswordPrompt = "Password: "
	MsgPasswordSaved  = "Password stored in the system keyring."
	MsgSyncOutput     = "%d contacts imported, %d events today\n"
	MsgFeedWritten    = "Feed written to %s\n"
	MsgConvertOutput  = "%s\t%s\t%s\n"
	MsgEventLine      = "%s\t%s\t%s\n"
	MarkToday         = "*"
	MarkEvent         = "+"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	SourceModeNone  = ""
	SourceModeWeb   = "web"
	SourceModeLocal = "local"

	DefaultPort        = 18080
	DefaultBindAddr    = "127.0.0.1"
	DefaultUTCOffset   = "+03:30" // Iran Standard Time, fixed (no DST)
	DefaultLanguage    = "fa"
	DefaultDBFile      = "events.db"
	DefaultRefreshMin  = 60
	DefaultNotifyEvery = time.Minute
	DisabledInterval   = 0

	UIDSalt = "go-shamsi-v1-" // Salt for deterministic UID generation

	EventSourceManual = "manual"
	EventSourceVCard  = "vcard"
	NoteUIDPrefix     = "note-"
)

// SupportedLanguages defines the list of available display languages (ISO 639-1).
var SupportedLanguages = []string{"fa", "en"}

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyMonthPrefix     = "month_"       // month_1 .. month_12
	TKeyWeekdayPrefix   = "weekday_"     // weekday_0 (Saturday) .. weekday_6 (Friday)
	TKeyWeekdayShortPfx = "weekday_short_"
	TKeyToday           = "label_today"
	TKeyEvents          = "label_events"
	TKeyNoEvents        = "label_no_events"
	TKeyNotifTitle      = "notif_today_title"
	TKeyEvtBirthday     = "event_birthday"     // Requires Name
	TKeyEvtBirthdayAge  = "event_birthday_age" // Requires Name, Age
	TKeyDateLong        = "format_date_long"   // Requires Weekday, Day, Month, Year
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion   = "2.0"
	ICalProdid    = "-//Go Shamsi//Engine//EN"
	ICalCalName   = "Jalali Events"
	ICalMethod    = "PUBLISH"
	ICalScale     = "GREGORIAN"
	ICalComponent = "VALARM"
	ICalAction    = "DISPLAY"
	ICalDomain    = "goshamsi"

	// iCal/vCard Fields
	PropUID         = "UID"
	PropSummary     = "SUMMARY"
	PropDTStart     = "DTSTART"
	PropDTStamp     = "DTSTAMP"
	PropRefresh     = "REFRESH-INTERVAL"
	PropAction      = "ACTION"
	PropDescription = "DESCRIPTION"
	PropTrigger     = "TRIGGER"
	PropVersion     = "VERSION"
	PropProdid      = "PRODID"
	PropXWRCalName  = "X-WR-CALNAME"
	PropCalScale    = "CALSCALE"
	PropMethod      = "METHOD"
	PropCategories  = "CATEGORIES"

	VCardBDAY = "BDAY"
	VCardFN   = "FN"
	VCardN    = "N"

	DefaultICalRefresh = 1 * time.Hour
)

// -----------------------------------------------------------------------------
// Data Formats, Limits & File Extensions
// -----------------------------------------------------------------------------

const (
	// Date layouts used for parsing vCard BDAY fields
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"

	// Scan layouts for year-less vCard dates (--MM-DD, --MMDD)
	ScanNoYearDash  = "--%2d-%2d"
	ScanNoYearBasic = "--%2d%2d"

	// Limits
	MinPort = 1
	MaxPort = 65535

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout         = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 256 * 1024 * 1024 // 256MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	AddrSeparator       = ":"
	WatchDebounce       = 200 * time.Millisecond

	RouteCalendar      = "/calendar.ics"
	RouteMetrics       = "/metrics"
	RouteLive          = "/health/live"
	RouteAPI           = "/api"
	RouteToday         = "/today"
	RouteToJalali      = "/convert/jalali"
	RouteToGreg        = "/convert/gregorian"
	RouteMonth         = "/months/{year}/{month}"
	RouteEventDate     = "/events/{year}/{month}/{day}"
	RouteBirthdays     = "/birthdays"
	RouteNotifications = "/notifications"
	RouteNotifClear    = "/notifications/clear"
	QueryDate          = "date"
	QueryLang          = "lang"
	MaxRequestBody     = 64 * 1024

	// Conversion targets (metrics labels)
	CalendarJalali    = "jalali"
	CalendarGregorian = "gregorian"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderAcceptLang      = "Accept-Language"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrLocalPathEmpty  = "configuration error: local path is empty"
	ErrWebURLEmpty     = "configuration error: web URL is empty"
	ErrFetcherMissing  = "internal error: network fetcher is not initialized"
	ErrStoreMissing    = "internal error: event store is not initialized"
	ErrModeUnsupport   = "configuration error: unsupported source mode"
	ErrServerStartup   = "server startup failed"
	ErrServerShutdown  = "server shutdown failed"
	ErrPortRequired    = "server port is required"
	ErrInvalidURL      = "invalid URL structure"
	ErrProtocol        = "unsupported protocol scheme (http/https only)"
	ErrVCardParse      = "failed to parse vCard stream"
	ErrICalEncode      = "failed to encode iCalendar data"
	ErrDateParse       = "unable to parse date"
	ErrLogFile         = "failed to open log file"
	ErrCacheDir        = "could not determine user cache dir"
	ErrCreateDir       = "could not create app cache dir"
	ErrAppFailed       = "application failed unexpectedly"
	ErrWriteResp       = "failed to write response body"
	ErrLocalesAccess   = "failed to access embedded locales"
	ErrLocaleLoad      = "failed to load locale file"
	ErrSettingsRead    = "failed to read settings file"
	ErrSettingsParse   = "failed to parse settings file"
	ErrSettingsInvalid = "settings validation failed"
	ErrOffsetFormat    = "UTC offset must look like +03:30"
	ErrStoreOpen       = "failed to open event store"
	ErrStoreQuery      = "event store query failed"
	ErrStoreWrite      = "event store write failed"
	ErrKeyring         = "keyring access failed"
	ErrPasswordRead    = "failed to read password"
	ErrNotify          = "failed to deliver notification"
	ErrWatch           = "settings watcher failed"
	ErrArgs            = "unexpected arguments"
	ErrUserRequired    = "an account name is required (--user or source.user)"
	ErrPasswordEmpty   = "password cannot be empty"
	ErrFetchRequest    = "failed to create request"
	ErrFetchNetwork    = "network error during fetch"
	ErrFetchStatus     = "server returned unexpected status"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Calendar initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgInternalErr  = "Internal Server Error"
	HTTPMsgNotFound     = "Not Found"
	HTTPMsgBadBody      = "Malformed JSON body"
)

// -----------------------------------------------------------------------------
// Fallbacks & Log Messages
// -----------------------------------------------------------------------------

const (
	FallbackBirthday    = "Birthday: %s"
	FallbackBirthdayAge = "Birthday: %s (%d)"
	FallbackName        = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"

	MsgSyncStarted   = "Synchronization started..."
	MsgSyncFinished  = "Sync finished"
	MsgSyncFailed    = "Synchronization failed"
	MsgWorkerStart   = "Background worker started"
	MsgWorkerStop    = "Worker stopping due to context cancellation"
	MsgAppStop       = "Application stopped gracefully"
	MsgSkippedCard   = "Skipping malformed vCard"
	MsgSkippedDate   = "Skipping invalid date format"
	MsgGenSuccess    = "Calendar generation successful"
	MsgImported      = "Birthdays imported"
	MsgAppStarting   = "Starting application"
	MsgServerListen  = "HTTP server listening"
	MsgServerStop    = "Shutting down HTTP server..."
	MsgCacheUpdated  = "Calendar cache updated"
	MsgLocaleSkip    = "Skipping non-locale file"
	MsgLocaleBadName = "Skipping malformed locale filename"
	MsgLocaleLoaded  = "Locale loaded successfully"
	MsgTransMissing  = "Missing translation key"
	MsgPassFail      = "Password retrieval failed (might be empty)"
	MsgLogWarning    = "Warning: %s at %s: %v\n"
	MsgEventToday    = "Event found today"
	MsgNotifySent    = "Notification delivered"
	MsgNotifyMuted   = "Notifications muted"
	MsgSettingsLoad  = "Settings loaded"
	MsgSettingsReld  = "Settings reloaded"
	MsgStoreOpened   = "Event store opened"
	MsgMCPStarting   = "MCP server starting on stdio"
	MsgFetchStart    = "Initiating vCard download"
	MsgFetchRecv     = "vCards downloading"
	MsgUpdateSync    = "Sync interval updated"
	MsgFeedRefreshed = "Feed refreshed after edit"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyAddr      = "addr"
	LogKeyMode      = "mode"
	LogKeyInterval  = "interval"
	LogKeyUser      = "user"
	LogKeyTotal     = "total_cards"
	LogKeyFound     = "birthdays_found"
	LogKeyEvents    = "events"
	LogKeyToday     = "events_today"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyValue     = "value"
	LogKeyStats     = "stats"
	LogKeyCount     = "count"
	LogKeyName      = "name"
	LogKeyDate      = "date"
	LogKeyDuration  = "duration_ms"
	LogKeyPath      = "path"
	LogKeyOffset    = "utc_offset"
	LogKeyDND       = "dnd"
	LogKeyRemoved   = "removed"
	LogKeyOld       = "old"
	LogKeyNew       = "new"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyCommit  = "commit"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine   = "engine"
	CompServer   = "server"
	CompFetcher  = "fetcher"
	CompWorker   = "worker"
	CompMain     = "main"
	CompI18n     = "i18n"
	CompStore    = "store"
	CompNotifier = "notifier"
	CompSettings = "settings"
	CompMCP      = "mcp"
)
