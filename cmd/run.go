package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pelusa-v/pelusa-live/internal/activity"
	"github.com/pelusa-v/pelusa-live/internal/api"
	"github.com/pelusa-v/pelusa-live/internal/debugpanel"
	"github.com/pelusa-v/pelusa-live/internal/notify"
	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
	"github.com/pelusa-v/pelusa-live/internal/session"
	"github.com/pelusa-v/pelusa-live/internal/storage"
	"github.com/pelusa-v/pelusa-live/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect, report presence and print realtime events",
	Long: `run opens the realtime connection for PELUSA_TOKEN and reads commands from stdin:

  /join <conversation>   join a conversation
  /leave                 leave the current conversation
  /typing [stop]         start or stop typing
  /read <message>        mark a message as read
  /dm <user> <text>      send a direct message
  /who <conversation>    ask for a conversation's status
  /notifications         list visible notifications
  /allow                 request native notification permission
  /dismiss               hide the permission banner
  /hide, /show           toggle window visibility
  /status                print connection and activity status
  /quit                  exit

Any other line counts as keyboard activity.`,
	RunE: runLive,
}

func runLive(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	sess, err := session.FromToken(cfg.Token)
	if err != nil {
		return fmt.Errorf("PELUSA_TOKEN: %w", err)
	}
	sessions := session.NewStatic(sess)

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	flags, err := storage.OpenFlags(cfg.DataDir)
	if err != nil {
		return err
	}

	actCfg := cfg.ActivitySettings()
	client := api.NewClient(cfg.APIBaseURL(), sessions, api.WithLogger(log), api.WithTimeout(actCfg.RequestTimeout))

	rtCfg := cfg.RealtimeSettings()
	mgr := realtime.NewManager(rtCfg, realtime.NewWebsocketDialer(rtCfg),
		realtime.WithLogger(log), realtime.WithMetrics(metrics))

	src := activity.NewEmitter()
	tracker := activity.NewTracker(actCfg, sessions, src, client,
		activity.WithLogger(log), activity.WithMetrics(metrics))

	term := newTerminal(cmd.OutOrStdout())
	presenter, err := notify.NewPresenter(cfg.NotifySettings(), term, term, flags,
		notify.WithLogger(log), notify.WithMetrics(metrics))
	if err != nil {
		flags.Close()
		return err
	}

	var panel *debugpanel.Panel
	if cfg.DebugAddr != "" {
		panel = debugpanel.New(mgr, tracker, presenter, reg, debugpanel.WithLogger(log))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stop := sync.OnceFunc(func() {
		cancel()
		tracker.Stop()
		presenter.Unmount()
		mgr.Disconnect()
		if panel != nil {
			if err := panel.Shutdown(); err != nil {
				log.Warn("debug panel shutdown", zap.Error(err))
			}
		}
		if err := flags.Close(); err != nil {
			log.Warn("close flags", zap.Error(err))
		}
	})

	r := &repl{
		term:      term,
		sess:      sess,
		mgr:       mgr,
		src:       src,
		tracker:   tracker,
		presenter: presenter,
	}
	r.subscribe()

	mgr.Connect(ctx, sess)
	tracker.Init()
	presenter.Mount(mgr)
	if presenter.BannerVisible() {
		term.printf("native notifications are off: /allow to enable, /dismiss to hide this\n")
	}

	g, gctx := errgroup.WithContext(ctx)
	lines := scanLines(cmd.InOrStdin())
	g.Go(func() error {
		defer cancel()
		return r.loop(gctx, lines)
	})
	if panel != nil {
		g.Go(func() error { return panel.Listen(cfg.DebugAddr) })
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"client": func(context.Context) error {
			stop()
			return nil
		},
	})

	select {
	case code := <-wait:
		log.Info("client exited", zap.Int("code", code))
	case <-gctx.Done():
		stop()
	}
	return g.Wait()
}

// scanLines feeds stdin lines to the command loop; the channel closes on EOF.
func scanLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

type repl struct {
	term      *terminal
	sess      *session.Session
	mgr       *realtime.Manager
	src       *activity.Emitter
	tracker   *activity.Tracker
	presenter *notify.Presenter
}

func (r *repl) subscribe() {
	r.mgr.OnStateChange(func(st realtime.State) {
		glyph, _ := debugpanel.Glyph(st)
		r.term.printf("%s %s\n", glyph, st)
	})
	r.mgr.OnMessage(func(ev realtime.MessageEvent) {
		switch e := ev.(type) {
		case realtime.NewMessage:
			r.term.printf("[%s] %s: %s\n", e.ConversationID, sender(e.Message), e.Message.Content)
		case realtime.MessageUpdate:
			if e.Action == protocol.MessageDeleted {
				r.term.printf("[%s] message %s deleted\n", e.ConversationID, e.MessageID)
			} else {
				r.term.printf("[%s] message %s edited: %s\n", e.ConversationID, e.MessageID, e.Content)
			}
		case realtime.ReactionUpdate:
			r.term.printf("[%s] message %s has %d reactions\n", e.ConversationID, e.MessageID, len(e.Reactions))
		case realtime.ReadReceiptUpdate:
			r.term.printf("[%s] %s read %s\n", e.ConversationID, e.UserID, e.MessageID)
		case realtime.NotificationReceived:
			r.term.printf("* %s %s\n", notify.StripMarkup(e.Notification.Title), notify.StripMarkup(e.Notification.Body))
		}
	})
	r.mgr.OnUserStatus(func(ev realtime.StatusEvent) {
		switch e := ev.(type) {
		case realtime.PresenceChanged:
			if e.IsOnline {
				r.term.printf("%s is online\n", e.UserID)
			} else {
				r.term.printf("%s went offline %s\n", e.UserID, humanize.Time(e.LastSeen))
			}
		case realtime.ParticipantJoined:
			r.term.printf("[%s] %s %s\n", e.ConversationID, participant(e.Username, e.UserID), e.Event())
		case realtime.ParticipantLeft:
			r.term.printf("[%s] %s %s\n", e.ConversationID, participant(e.Username, e.UserID), e.Event())
		}
	})
	r.mgr.OnTyping(func(ev realtime.TypingEvent) {
		if ev.UserID == r.sess.User.ID {
			return
		}
		verb := "stopped typing"
		if ev.IsTyping {
			verb = "is typing..."
		}
		r.term.printf("[%s] %s %s\n", ev.ConversationID, participant(ev.Username, ev.UserID), verb)
	})
}

func (r *repl) loop(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
				return nil
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (quit bool) {
	if line == "" {
		return false
	}
	r.src.Emit(activity.KindKey)
	if !strings.HasPrefix(line, "/") {
		return false
	}

	fields := strings.Fields(line)
	args := fields[1:]
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/join":
		if len(args) != 1 {
			r.term.printf("usage: /join <conversation>\n")
			return false
		}
		r.report("join", r.mgr.JoinConversation(args[0]))
	case "/leave":
		r.report("leave", r.mgr.LeaveConversation())
	case "/typing":
		if len(args) > 0 && args[0] == "stop" {
			r.report("typing", r.mgr.StopTyping())
		} else {
			r.report("typing", r.mgr.StartTyping())
		}
	case "/read":
		if len(args) != 1 {
			r.term.printf("usage: /read <message>\n")
			return false
		}
		r.report("read", r.mgr.MarkMessageAsRead(args[0]))
	case "/dm":
		if len(args) < 2 {
			r.term.printf("usage: /dm <user> <text>\n")
			return false
		}
		r.report("dm", r.mgr.SendDirectMessage(args[0], strings.Join(args[1:], " ")))
	case "/who":
		if len(args) != 1 {
			r.term.printf("usage: /who <conversation>\n")
			return false
		}
		r.report("who", r.mgr.RequestConversationStatus(args[0]))
	case "/notifications":
		r.printNotifications()
	case "/allow":
		r.presenter.RequestPermission(ctx)
		r.term.printf("permission: %s\n", r.presenter.Permission())
	case "/dismiss":
		r.presenter.DismissBanner()
	case "/hide":
		r.term.SetHidden(true)
		r.src.SetVisible(false)
	case "/show":
		r.term.SetHidden(false)
		r.src.SetVisible(true)
	case "/status":
		r.printStatus()
	default:
		r.term.printf("unknown command %s\n", fields[0])
	}
	return false
}

func (r *repl) report(what string, sent bool) {
	if !sent {
		r.term.printf("%s not sent (offline or no conversation)\n", what)
	}
}

func (r *repl) printStatus() {
	st := r.mgr.State()
	glyph, _ := debugpanel.Glyph(st)
	act := r.tracker.ActivityStatus()
	conv := r.mgr.CurrentConversation()
	if conv == "" {
		conv = "-"
	}
	r.term.printf("%s %s  conversation=%s  active=%t  last activity %s  unread=%d\n",
		glyph, st, conv, act.IsActive,
		humanize.RelTime(time.Now().Add(-act.TimeSinceLastActivity), time.Now(), "ago", "from now"),
		r.presenter.UnreadCount())
}

func (r *repl) printNotifications() {
	list := r.presenter.Visible()
	if len(list) == 0 {
		r.term.printf("no notifications\n")
		return
	}
	for _, n := range list {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		r.term.printf("%s %s  %s  %s (%s)\n", mark, n.ID, n.Title, n.Body, humanize.Time(n.CreatedAt))
	}
}

func sender(m protocol.ChatMessage) string {
	return participant(m.SenderName, m.SenderID)
}

func participant(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
