package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/labsync/internal/booking"
	"github.com/shrimpsizemoose/labsync/internal/models"
)

const (
	studentHelp = `Comandos disponibles:
/availability <lab> <fecha> <inicio> <fin> - Ver asientos libres
/rules [lab] - Ver lineamientos
/help - Mostrar este mensaje

Ejemplo:
/availability B501 2024-05-11 09:00 11:00`

	adminHelp = `Comandos disponibles:
/availability <lab> <fecha> <inicio> <fin> - Ver asientos libres
/rules [lab] - Ver lineamientos
/block <lab> <fecha> <inicio> <fin> [motivo] - Bloquear horario
/reservations <fecha> [lab] - Reservas del día
/capacity <lab> <asientos> - Cambiar capacidad
/help - Mostrar este mensaje

Ejemplos:
/block C402 2024-05-11 14:00 16:00 mantenimiento
/reservations hoy C402
/capacity B501 20`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":        b.handleStart,
		"help":         b.handleHelp,
		"availability": b.handleAvailability,
		"rules":        b.handleRules,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"block":        b.handleBlock,
		"reservations": b.handleReservations,
		"capacity":     b.handleCapacity,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeStudentCommands(cmd); ok {
		b.run(handler, msg)
		return
	}

	if b.isAdmin(msg) {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			b.run(handler, msg)
			return
		}
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) run(handler commandHandler, msg *tgbotapi.Message) {
	if err := handler(msg); err != nil {
		logger.Error.Printf("Command /%s error: %v", msg.Command(), err)
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
	}
}

func (b *Bot) isAdmin(msg *tgbotapi.Message) bool {
	return msg.From != nil && b.admins[msg.From.ID]
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	if b.isAdmin(msg) {
		return b.sendMessage(msg.Chat.ID, adminHelp)
	}
	return b.sendMessage(msg.Chat.ID, studentHelp)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Usa comandos para interactuar con el bot. Envía /help para ver la lista.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "¡Hola! Te ayudo a consultar los laboratorios.\n\n"
	if b.isAdmin(msg) {
		text += "Eres administrador. Usa /help para ver los comandos."
	} else {
		text += "Usa /availability para ver asientos libres."
	}
	return b.sendMessage(msg.Chat.ID, text)
}

// resolveDay accepts YYYY-MM-DD plus a few shortcuts relative to now.
func resolveDay(arg string, now time.Time) (string, error) {
	switch strings.ToLower(arg) {
	case "hoy", "today":
		return now.Format(models.DateLayout), nil
	case "mañana", "manana", "tomorrow":
		return now.AddDate(0, 0, 1).Format(models.DateLayout), nil
	}
	if _, err := time.Parse(models.DateLayout, arg); err != nil {
		return "", fmt.Errorf("fecha inválida %q (usa YYYY-MM-DD)", arg)
	}
	return arg, nil
}

func (b *Bot) handleAvailability(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 4 {
		return fmt.Errorf("uso: /availability <lab> <fecha> <inicio> <fin>")
	}

	day, err := resolveDay(args[1], b.service.Now())
	if err != nil {
		return err
	}

	availability, err := b.service.Availability(args[0], day, args[2], args[3])
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, formatAvailability(strings.ToUpper(args[0]), day, availability))
}

func formatAvailability(lab, day string, availability []booking.SlotAvailability) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Disponibilidad %s, %s:\n\n", lab, day))
	for _, a := range availability {
		sb.WriteString(fmt.Sprintf("🕘 %s  %d/%d libres\n", a.Slot, a.Available, a.Capacity))
	}
	return sb.String()
}

func (b *Bot) handleRules(msg *tgbotapi.Message) error {
	lab := strings.TrimSpace(msg.CommandArguments())
	rules, err := b.service.Rules(lab)
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, rules)
}

func (b *Bot) handleBlock(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 4 {
		return fmt.Errorf("uso: /block <lab> <fecha> <inicio> <fin> [motivo]")
	}

	day, err := resolveDay(args[1], b.service.Now())
	if err != nil {
		return err
	}

	req := models.BlockRequest{
		Lab:    args[0],
		Day:    day,
		Start:  args[2],
		End:    args[3],
		Reason: strings.Join(args[4:], " "),
	}
	displaced, err := b.service.BlockSchedule(req)
	if err != nil {
		return err
	}

	logger.Info.Printf("Telegram admin %d blocked %s %s %s-%s", msg.From.ID, req.Lab, day, req.Start, req.End)
	return b.sendMessage(msg.Chat.ID, formatBlock(req, displaced))
}

func formatBlock(req models.BlockRequest, displaced []models.Reservation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔒 %s bloqueado el %s de %s a %s", req.Lab, req.Day, req.Start, req.End))
	if req.Reason != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", req.Reason))
	}
	sb.WriteString(fmt.Sprintf("\nReservas canceladas: %d", len(displaced)))
	for _, r := range displaced {
		sb.WriteString(fmt.Sprintf("\n  %s %s", r.Slot, r.Email))
	}
	return sb.String()
}

func (b *Bot) handleReservations(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("uso: /reservations <fecha> [lab]")
	}

	day, err := resolveDay(args[0], b.service.Now())
	if err != nil {
		return err
	}
	filter := models.ReservationFilter{Day: day}
	if len(args) > 1 {
		lab, err := b.service.Lab(args[1])
		if err != nil {
			return err
		}
		filter.Lab = lab.Name
	}

	rows, err := b.service.AllReservations(filter)
	if err != nil {
		return fmt.Errorf("error al obtener reservas: %v", err)
	}
	return b.sendMessage(msg.Chat.ID, formatReservations(day, rows))
}

func formatReservations(day string, rows []models.Reservation) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No hay reservas para %s", day)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Reservas del %s:\n\n", day))
	for _, r := range rows {
		parts := []string{"📝", r.Slot, r.Lab, r.Email}
		if purpose := strings.TrimSpace(r.Purpose); purpose != "" {
			parts = append(parts, purpose)
		}
		if r.Kind == models.KindGroup {
			parts = append(parts, fmt.Sprintf("[%s, %d personas]", r.GroupName, r.Headcount))
		}
		if r.Confirmed {
			parts = append(parts, "✅")
		}
		sb.WriteString(strings.Join(parts, " ") + "\n")
	}
	return sb.String()
}

func (b *Bot) handleCapacity(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return fmt.Errorf("uso: /capacity <lab> <asientos>")
	}

	seats, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("número de asientos inválido: %v", err)
	}
	if err := b.service.SetCapacity(args[0], seats); err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Capacidad de %s: %d asientos", strings.ToUpper(args[0]), seats))
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
