// Package locale renders Jalali dates and labels in the supported display languages.
package locale

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/tartampluch/go-shamsi/internal/jalali"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
	loaded     []string
	matcher    language.Matcher
	tags       []language.Tag
)

// loadBundle parses the embedded locale files once per process.
func loadBundle() {
	bundle = i18n.NewBundle(language.Persian)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	// The first tag is the fallback when nothing matches.
	for _, l := range config.SupportedLanguages {
		tags = append(tags, language.Make(l))
	}
	matcher = language.NewMatcher(tags)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}
		loaded = append(loaded, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
		)
	}
}

// Languages returns the language codes whose locale file loaded.
func Languages() []string {
	bundleOnce.Do(loadBundle)
	return append([]string(nil), loaded...)
}

// Match resolves user preferences (codes such as "fa-IR" or an
// Accept-Language header value) to a supported language code.
func Match(prefs ...string) string {
	bundleOnce.Do(loadBundle)

	var want []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		want = append(want, parsed...)
	}
	_, idx, _ := matcher.Match(want...)
	return config.SupportedLanguages[idx]
}

// Translator localizes labels and dates for one language.
type Translator struct {
	lang      string
	localizer *i18n.Localizer
	printer   *message.Printer
}

// New returns a translator for the best supported match of lang.
func New(lang string) *Translator {
	bundleOnce.Do(loadBundle)
	code := Match(lang)
	return &Translator{
		lang:      code,
		localizer: i18n.NewLocalizer(bundle, code),
		printer:   message.NewPrinter(language.Make(code)),
	}
}

// Lang is the resolved language code.
func (t *Translator) Lang() string {
	return t.lang
}

// Msg translates key, returning the key itself when it is missing.
func (t *Translator) Msg(key string) string {
	return t.render(key, nil)
}

func (t *Translator) render(key string, data map[string]interface{}) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

// MonthName returns the name of Jalali month m (1..12).
func (t *Translator) MonthName(m int) string {
	return t.Msg(config.TKeyMonthPrefix + strconv.Itoa(m))
}

// WeekdayName returns the full name of grid column i, where 0 is Saturday.
func (t *Translator) WeekdayName(i int) string {
	return t.Msg(config.TKeyWeekdayPrefix + strconv.Itoa(i))
}

// WeekdayShort returns the abbreviated name of grid column i, where 0 is Saturday.
func (t *Translator) WeekdayShort(i int) string {
	return t.Msg(config.TKeyWeekdayShortPfx + strconv.Itoa(i))
}

// Number renders n with the digits of the current language and no grouping.
// The sign is always an ASCII minus; CLDR wraps it in direction marks for fa.
func (t *Translator) Number(n int) string {
	if n < 0 {
		return "-" + t.printer.Sprint(number.Decimal(-n, number.NoSeparator()))
	}
	return t.printer.Sprint(number.Decimal(n, number.NoSeparator()))
}

// FormatDate renders d as a long date, e.g. "Saturday, 1 Farvardin 1403".
func (t *Translator) FormatDate(d jalali.Date) string {
	jdn, err := jalali.JalaliToJDN(d)
	if err != nil {
		return d.String()
	}
	col := (int(jalali.Weekday(jdn)) + 1) % jalali.WeekLength
	return t.render(config.TKeyDateLong, map[string]interface{}{
		"Weekday": t.WeekdayName(col),
		"Day":     t.Number(d.Day),
		"Month":   t.MonthName(d.Month),
		"Year":    t.Number(d.Year),
	})
}

// BirthdaySummary has the signature expected by engine.Generator.FormatSummary.
func (t *Translator) BirthdaySummary(name string, age int, yearKnown bool) string {
	if yearKnown && age > 0 {
		return t.render(config.TKeyEvtBirthdayAge, map[string]interface{}{
			"Name": name,
			"Age":  t.Number(age),
		})
	}
	return t.render(config.TKeyEvtBirthday, map[string]interface{}{"Name": name})
}
