package router

import (
	"context"

	kit "clockbot/internal/transport"
	logx "clockbot/pkg/logx"
)

var menuEN = []kit.BotCommand{
	{Command: "start", Description: "How to set up the bot"},
	{Command: "clocknow", Description: "Clock in right now"},
	{Command: "clockin", Description: "Schedule a clock-in (HH:MM)"},
	{Command: "list", Description: "List your clock-ins"},
	{Command: "cancel", Description: "Cancel a scheduled clock-in"},
	{Command: "location", Description: "Show the saved location"},
	{Command: "settimezone", Description: "Set your time zone"},
	{Command: "data", Description: "Show saved account info"},
	{Command: "history", Description: "Recent clock-in attempts"},
}

var menuES = []kit.BotCommand{
	{Command: "start", Description: "Cómo configurar el bot"},
	{Command: "clocknow", Description: "Fichar ahora mismo"},
	{Command: "clockin", Description: "Programar un fichaje (HH:MM)"},
	{Command: "list", Description: "Listar tus fichajes"},
	{Command: "cancel", Description: "Cancelar un fichaje programado"},
	{Command: "location", Description: "Ver la ubicación guardada"},
	{Command: "settimezone", Description: "Configurar tu zona horaria"},
	{Command: "data", Description: "Ver la información guardada"},
	{Command: "history", Description: "Últimos intentos de fichaje"},
}

// RegisterMenus publishes the command menu with the English list as the
// default and a Spanish override.
func (r *Router) RegisterMenus(ctx context.Context) {
	for _, m := range []struct {
		code string
		cmds []kit.BotCommand
	}{
		{"", menuEN},
		{"es", menuES},
	} {
		if err := r.adapter.UpdateMenuCommands(ctx, m.code, m.cmds); err != nil {
			r.log.Warn("menu registration failed", logx.String("lang", m.code), logx.Err(err))
		}
	}
}
