// Package i18n holds the user-facing reply texts in English and Spanish.
// Selection follows the sender's Telegram language code; anything that is
// not Spanish falls back to English.
package i18n

import "strings"

type Lang string

const (
	LangEN Lang = "en"
	LangES Lang = "es"
)

// FromLanguageCode maps a Telegram language code ("es", "es-ES", "en", ...)
// to a supported language.
func FromLanguageCode(code string) Lang {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(code)), "es") {
		return LangES
	}
	return LangEN
}

// Format substitutes {name} placeholders in a template.
func Format(tpl string, args map[string]string) string {
	out := tpl
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// Texts is one language's reply table.
type Texts struct {
	Start         string
	LoginRequired string
	SessionExpired string

	DocInvalid  string
	DocTooLarge string
	DocError    string
	DocParsed   string
	DocDetails  string

	LocationUpdated string

	ClockedInNow       string
	ClockedInScheduled string
	ClockNowError      string

	UsageClockIn     string
	InvalidClockIn   string
	ScheduledClockIn string
	ScheduledFailed  string

	ListHeader     string
	ListEmpty      string
	StatusPending  string
	StatusExecuted string
	StatusFailed   string

	CancelUsage    string
	CancelOK       string
	CancelFail     string
	CancelNotFound string
	CancelAllOK    string
	CancelAllNone  string

	DataHeader       string
	DataUserID       string
	DataLocation     string
	DataDomain       string
	DataCookies      string
	DataCookieHcmex  string
	DataCookieDevice string
	DataCookieGeo    string
	DataExpires      string
	StatusSet        string
	StatusMissing    string

	SetTimezoneUsage   string
	SetTimezoneInvalid string
	SetTimezoneOK      string

	HistoryHeader string
	HistoryEmpty  string
}

// For returns the reply table for lang.
func For(lang Lang) Texts {
	if lang == LangES {
		return es
	}
	return en
}

var en = Texts{
	Start: "Welcome! Export your Bizneo cookies with a cookie-editor extension " +
		"and upload the .json file here. Once your session is saved you can use " +
		"/clocknow, /clockin HH:MM, /list and /cancel.",
	LoginRequired:  "No session saved. Upload your cookie export first (see /start).",
	SessionExpired: "Your session has expired. Please upload a fresh cookie export.",

	DocInvalid:  "That doesn't look like a cookie export. Please upload a .json file.",
	DocTooLarge: "That file is too large (5 MB max).",
	DocError:    "Could not read that cookie export: {error}",
	DocParsed:   "Session saved. {details}",
	DocDetails: "Location: {lat}, {long} ({link})\nDomain: {domain}\n" +
		"Session valid until {expires}",

	LocationUpdated: "Location updated: {link}",

	ClockedInNow:       "Clocked in. Have a nice day!",
	ClockedInScheduled: "Clocked in as scheduled for {time}.",
	ClockNowError:      "Clock-in failed: {error}",

	UsageClockIn:     "Usage: /clockin HH:MM (for example /clockin 09:00 or /clockin 9am)",
	InvalidClockIn:   "I couldn't read that time. Try something like 09:00, 9am or 18:30.",
	ScheduledClockIn: "Scheduled a clock-in for {time}.\nCancel it with /cancel {id}",
	ScheduledFailed:  "Your scheduled clock-in failed: {error}\nSchedule a new one with /clockin.",

	ListHeader:     "Your clock-ins:",
	ListEmpty:      "You have no scheduled clock-ins.",
	StatusPending:  "pending",
	StatusExecuted: "done",
	StatusFailed:   "failed",

	CancelUsage:    "Usage: /cancel <id> or /cancel all",
	CancelOK:       "Cancelled {id}.",
	CancelFail:     "Could not cancel that task.",
	CancelNotFound: "No task of yours has that id. See /list.",
	CancelAllOK:    "Cancelled {count} pending clock-in(s).",
	CancelAllNone:  "Nothing pending to cancel.",

	DataHeader:       "Saved account info:",
	DataUserID:       "User id: {userId}",
	DataLocation:     "Location: {lat}, {long} (accuracy {accuracy} m)",
	DataDomain:       "Domain: {domain}",
	DataCookies:      "Cookies:",
	DataCookieHcmex:  "  session: {status}",
	DataCookieDevice: "  device: {status}",
	DataCookieGeo:    "  geo: {status}",
	DataExpires:      "Valid until: {expires}",
	StatusSet:        "set",
	StatusMissing:    "missing",

	SetTimezoneUsage:   "Usage: /settimezone <IANA zone>, for example /settimezone Europe/Madrid",
	SetTimezoneInvalid: "Unknown time zone. Use an IANA name like Europe/Madrid or America/Bogota.",
	SetTimezoneOK:      "Time zone set to {tz}.",

	HistoryHeader: "Recent clock-in attempts:",
	HistoryEmpty:  "No clock-in history yet.",
}

var es = Texts{
	Start: "¡Bienvenido! Exporta tus cookies de Bizneo con una extensión tipo " +
		"cookie-editor y sube aquí el archivo .json. Con la sesión guardada podrás " +
		"usar /clocknow, /clockin HH:MM, /list y /cancel.",
	LoginRequired:  "No hay sesión guardada. Sube primero tu export de cookies (ver /start).",
	SessionExpired: "Tu sesión ha caducado. Sube un export de cookies nuevo.",

	DocInvalid:  "Eso no parece un export de cookies. Sube un archivo .json.",
	DocTooLarge: "El archivo es demasiado grande (máximo 5 MB).",
	DocError:    "No pude leer ese export de cookies: {error}",
	DocParsed:   "Sesión guardada. {details}",
	DocDetails: "Ubicación: {lat}, {long} ({link})\nDominio: {domain}\n" +
		"Sesión válida hasta {expires}",

	LocationUpdated: "Ubicación actualizada: {link}",

	ClockedInNow:       "Fichaje hecho. ¡Buen día!",
	ClockedInScheduled: "Fichaje realizado según lo programado para {time}.",
	ClockNowError:      "El fichaje ha fallado: {error}",

	UsageClockIn:     "Uso: /clockin HH:MM (por ejemplo /clockin 09:00 o /clockin 9am)",
	InvalidClockIn:   "No entiendo esa hora. Prueba con 09:00, 9am o 18:30.",
	ScheduledClockIn: "Fichaje programado para {time}.\nCancélalo con /cancel {id}",
	ScheduledFailed:  "Tu fichaje programado ha fallado: {error}\nPrograma otro con /clockin.",

	ListHeader:     "Tus fichajes:",
	ListEmpty:      "No tienes fichajes programados.",
	StatusPending:  "pendiente",
	StatusExecuted: "hecho",
	StatusFailed:   "fallido",

	CancelUsage:    "Uso: /cancel <id> o /cancel all",
	CancelOK:       "Cancelado {id}.",
	CancelFail:     "No se pudo cancelar esa tarea.",
	CancelNotFound: "Ninguna tarea tuya tiene ese id. Mira /list.",
	CancelAllOK:    "Cancelado(s) {count} fichaje(s) pendiente(s).",
	CancelAllNone:  "No hay nada pendiente que cancelar.",

	DataHeader:       "Información guardada:",
	DataUserID:       "Id de usuario: {userId}",
	DataLocation:     "Ubicación: {lat}, {long} (precisión {accuracy} m)",
	DataDomain:       "Dominio: {domain}",
	DataCookies:      "Cookies:",
	DataCookieHcmex:  "  sesión: {status}",
	DataCookieDevice: "  dispositivo: {status}",
	DataCookieGeo:    "  geo: {status}",
	DataExpires:      "Válida hasta: {expires}",
	StatusSet:        "configurada",
	StatusMissing:    "falta",

	SetTimezoneUsage:   "Uso: /settimezone <zona IANA>, por ejemplo /settimezone Europe/Madrid",
	SetTimezoneInvalid: "Zona horaria desconocida. Usa un nombre IANA como Europe/Madrid o America/Bogota.",
	SetTimezoneOK:      "Zona horaria configurada: {tz}.",

	HistoryHeader: "Últimos intentos de fichaje:",
	HistoryEmpty:  "Todavía no hay historial de fichajes.",
}
