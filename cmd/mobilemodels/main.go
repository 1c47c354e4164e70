// Command mobilemodels is a terminal chat client that fans each question out
// to every enabled provider, streams the answers side by side, and persists
// the finished turns to postgres.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	// Ensure provider tokens are loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/option"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ankitkumar1302/mobilemodels"
	"github.com/ankitkumar1302/mobilemodels/api"
	"github.com/ankitkumar1302/mobilemodels/broker"
	"github.com/ankitkumar1302/mobilemodels/events"
	"github.com/ankitkumar1302/mobilemodels/pkg/slogx"
	"github.com/ankitkumar1302/mobilemodels/provider"
	"github.com/ankitkumar1302/mobilemodels/provider/openai"
	"github.com/ankitkumar1302/mobilemodels/settings"
	"github.com/ankitkumar1302/mobilemodels/store"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelWarn}),
	))
}

var glam *glamour.TermRenderer

func main() {
	var err error
	glam, err = glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		slog.Error("failed to create renderer", slogx.Error(err))
		os.Exit(1)
	}

	if err := mainE(context.Background()); err != nil {
		slog.Error("failed to run chat", slogx.Error(err))
		os.Exit(1)
	}
}

func mainE(ctx context.Context) error {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	conversations := store.New(db)
	if err := conversations.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	cfg := settings.New()
	platforms, err := cfg.FetchPlatforms(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve platform settings: %w", err)
	}

	sessions := buildSessions(platforms)
	if len(sessions.Registered()) == 0 {
		return fmt.Errorf("no providers enabled, set MOBILEMODELS_<PROVIDER>_ENABLED=true")
	}

	roomID, err := pickRoom(ctx, conversations)
	if err != nil {
		return err
	}

	finished, hook := newConsoleHook()

	// With a NATS url configured, every chat event is also published to the
	// room's topic so other processes can observe the conversation.
	if natsURL := os.Getenv("MOBILEMODELS_NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Close()

		topic := broker.NATS(nc).Topic(ctx, broker.RoomTopic(roomID))
		hook = events.NewCompositeHook(hook, broker.PublisherHook(topic, func(err error) {
			slog.Warn("failed to publish chat event", slogx.Error(err))
		}))
	}

	chat := mobilemodels.New(roomID, conversations, cfg, sessions, mobilemodels.WithHook(hook))
	defer chat.Close()

	if err := chat.Load(ctx); err != nil {
		return fmt.Errorf("failed to load room: %w", err)
	}

	snap := chat.Snapshot()
	fmt.Printf("%s (providers: %s)\n", color.GreenString(snap.Room.Title), providerList(snap.Room.EnabledProviders))
	for _, msg := range snap.Messages {
		printMessage(msg)
	}

	return runREPL(ctx, chat, finished)
}

// buildSessions registers a streaming session for every enabled platform
// that speaks the openai chat completions protocol. Platforms without a
// wired session still take part in the turn and settle with an error answer.
func buildSessions(platforms []settings.Platform) *provider.Registry {
	sessions := provider.NewRegistry()
	for _, platform := range platforms {
		if !platform.Enabled {
			continue
		}

		switch platform.Name {
		case api.OpenAI, api.Groq, api.Ollama:
			options := []option.RequestOption{option.WithBaseURL(openAIBaseURL(platform))}
			if platform.Token != "" {
				options = append(options, option.WithAPIKey(platform.Token))
			}

			session := openai.New(options...)
			if platform.Model != "" {
				session = session.WithModel(platform.Model)
			}
			if platform.Temperature != nil {
				session = session.WithTemperature(*platform.Temperature)
			}
			if platform.TopP != nil {
				session = session.WithTopP(*platform.TopP)
			}
			sessions.Register(platform.Name, session)
		default:
			slog.Warn("provider enabled but no session implemented", slogx.Provider(platform.Name))
		}
	}
	return sessions
}

func openAIBaseURL(platform settings.Platform) string {
	url := strings.TrimSuffix(platform.APIURL, "/")
	if platform.Name == api.Ollama && !strings.HasSuffix(url, "/v1") {
		url += "/v1"
	}
	return url
}

// pickRoom resumes the room named on the command line, otherwise it lists
// recent rooms and starts a fresh one.
func pickRoom(ctx context.Context, conversations api.ConversationStore) (int64, error) {
	if len(os.Args) > 1 {
		roomID, err := strconv.ParseInt(os.Args[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid room id %q: %w", os.Args[1], err)
		}
		return roomID, nil
	}

	rooms := mobilemodels.NewRoomList(conversations)
	recent, err := rooms.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch room list: %w", err)
	}
	for _, room := range recent {
		fmt.Printf("%s %d: %s\n", color.HiBlackString("room"), room.ID, room.Title)
	}

	return api.RoomNew, nil
}

func runREPL(ctx context.Context, chat *mobilemodels.Chat, finished <-chan events.Event) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanLines)

	for {
		fmt.Printf("%s: ", color.CyanString("You"))
		if !scanner.Scan() {
			fmt.Println("Exiting...")
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"):
			return nil
		case strings.EqualFold(input, "/export"):
			if err := exportMarkdown(chat); err != nil {
				return err
			}
			continue
		case strings.HasPrefix(input, "/title "):
			title := strings.TrimSpace(strings.TrimPrefix(input, "/title "))
			if err := chat.UpdateTitle(ctx, title); err != nil {
				fmt.Fprintf(os.Stdout, "%s: %v\n", color.RedString("Error"), err)
			}
			continue
		}

		chat.SetQuestion(ctx, input)
		chat.SubmitQuestion(ctx)
		if chat.Snapshot().Idle() {
			// The question was not accepted, nothing to wait for.
			continue
		}

		renderTurn(finished)
	}
}

// renderTurn drains observer events for one turn, streaming chunks as they
// arrive and rendering the final answers, until the turn commits.
func renderTurn(finished <-chan events.Event) {
	streamed := map[api.Provider]bool{}
	var lastProvider api.Provider

	for msg := range finished {
		switch m := msg.(type) {
		case events.Question:
			fmt.Fprintln(os.Stdout)
		case events.Chunk:
			if m.Provider != lastProvider {
				if lastProvider != "" {
					fmt.Fprintln(os.Stdout)
				}
				fmt.Fprint(os.Stdout, color.MagentaString(providerLabel(m.Provider))+": ")
				lastProvider = m.Provider
			}
			fmt.Fprint(os.Stdout, m.Content)
			streamed[m.Provider] = true
		case events.Answer:
			if streamed[m.Provider] {
				fmt.Fprintln(os.Stdout)
				continue
			}
			fmt.Fprint(os.Stdout, color.MagentaString(providerLabel(m.Provider))+": ")
			out, _ := glam.Render(m.Message.Content)
			fmt.Fprintln(os.Stdout, out)
		case events.Error:
			fmt.Fprintf(os.Stdout, "%s [%s]: %v\n", color.RedString("Error"), providerLabel(m.Provider), m.Err)
		case events.Status:
			// Status transitions are implicit in the chunk and answer output.
		case events.Committed:
			fmt.Fprintln(os.Stdout)
			return
		}
	}
}

func exportMarkdown(chat *mobilemodels.Chat) error {
	name, doc := chat.ExportMarkdown()
	if err := os.WriteFile(name, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("exported to %s\n", name)
	return nil
}

func printMessage(msg api.Message) {
	if msg.FromUser() {
		fmt.Printf("%s: %s\n", color.CyanString("You"), msg.Content)
		return
	}
	fmt.Printf("%s: %s\n", color.MagentaString(providerLabel(*msg.Provider)), msg.Content)
}

var providerLabels = map[api.Provider]string{
	api.OpenAI:    "OpenAI",
	api.Anthropic: "Anthropic",
	api.Google:    "Google",
	api.Groq:      "Groq",
	api.Ollama:    "Ollama",
}

func providerLabel(p api.Provider) string {
	if label, ok := providerLabels[p]; ok {
		return label
	}
	return string(p)
}

func providerList(providers []api.Provider) string {
	labels := make([]string, 0, len(providers))
	for _, p := range providers {
		labels = append(labels, providerLabel(p))
	}
	if len(labels) == 0 {
		return "none"
	}
	return strings.Join(labels, ", ")
}

func newConsoleHook() (chan events.Event, events.Hook) {
	ch := make(chan events.Event, 256)
	return ch, &consoleHook{ch: ch}
}

// consoleHook forwards observer callbacks onto a channel so the REPL can
// render them from a single goroutine.
type consoleHook struct {
	ch chan<- events.Event
}

func (c *consoleHook) OnQuestion(ctx context.Context, e events.Question)   { c.send(e) }
func (c *consoleHook) OnChunk(ctx context.Context, e events.Chunk)         { c.send(e) }
func (c *consoleHook) OnAnswer(ctx context.Context, e events.Answer)       { c.send(e) }
func (c *consoleHook) OnStatusChange(ctx context.Context, e events.Status) { c.send(e) }
func (c *consoleHook) OnCommitted(ctx context.Context, e events.Committed) { c.send(e) }
func (c *consoleHook) OnError(ctx context.Context, e events.Error)         { c.send(e) }

func (c *consoleHook) send(e events.Event) {
	select {
	case c.ch <- e:
	default:
		slog.Warn("dropping console event, renderer is behind")
	}
}
