package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/honganh1206/stargazer/api"
	"github.com/honganh1206/stargazer/app/lifecycle"
	"github.com/honganh1206/stargazer/chatsync"
	"github.com/honganh1206/stargazer/preview"
	"github.com/honganh1206/stargazer/realtime"
	"github.com/honganh1206/stargazer/ui"
	"github.com/honganh1206/stargazer/utils"
)

// previewFeed wires the baseline, the live list and the synchronizer together
// and reports every change to a ui.Controller.
type previewFeed struct {
	client *api.Client
	list   *preview.List
	sync   *chatsync.Synchronizer
	ctrl   *ui.Controller
	token  string
	logger *slog.Logger
}

func newPreviewFeed(e *env, token string, policy preview.MissPolicy, logger *slog.Logger) *previewFeed {
	list := preview.NewList(nil)
	ctrl := ui.NewController()

	dialer := &realtime.Dialer{URL: e.cfg.SocketURL, Logger: logger}
	syncer := chatsync.New(chatsync.RealtimeDialer(dialer), list,
		chatsync.WithMissPolicy(policy),
		chatsync.WithLogger(logger))

	f := &previewFeed{
		client: e.client,
		list:   list,
		sync:   syncer,
		ctrl:   ctrl,
		token:  token,
		logger: logger,
	}

	list.OnChange(func(items []preview.Preview) {
		f.publish(items, nil)
	})
	return f
}

func (f *previewFeed) publish(items []preview.Preview, err error) {
	f.ctrl.Publish(&ui.State{Previews: items, Status: f.sync.State().String(), Err: err})
}

// start loads the baseline, then activates the subscription on top of it.
func (f *previewFeed) start(ctx context.Context) error {
	baseline, err := f.client.ListPreviews(ctx)
	if err != nil {
		return err
	}
	f.list.Reset(baseline)

	err = <-f.sync.Activate(ctx, f.token)
	f.publish(f.list.Snapshot(), err)
	return err
}

// monitor republishes when the synchronizer changes state on its own, e.g.
// when the connection drops.
func (f *previewFeed) monitor(ctx context.Context) {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	last := f.sync.State()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if st := f.sync.State(); st != last {
				last = st
				f.publish(f.list.Snapshot(), nil)
			}
		}
	}
}

func (f *previewFeed) stop() {
	select {
	case err := <-f.sync.Deactivate():
		if err != nil {
			f.logger.Warn("closing preview subscription", "err", err)
		}
	case <-time.After(3 * time.Second):
		f.logger.Warn("timed out closing preview subscription")
	}
}

func WatchHandler(cmd *cobra.Command, args []string, e *env) error {
	token, err := e.store.BearerToken()
	if err != nil {
		return fmt.Errorf("%w: run 'stargazer login' first", err)
	}

	onMiss, _ := cmd.Flags().GetString("on-miss")
	policy, err := preview.ParseMissPolicy(onMiss)
	if err != nil {
		return err
	}

	plain, _ := cmd.Flags().GetBool("plain")
	logFile, _ := cmd.Flags().GetString("log-file")

	logger := slog.Default()
	if !plain {
		// The terminal belongs to tview
		var w io.Writer = io.Discard
		if logFile != "" {
			lf, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return err
			}
			defer lf.Close()
			w = lf
		}
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}

	ctx, cancel := lifecycle.WithSignals(cmd.Context())
	defer cancel()

	feed := newPreviewFeed(e, token, policy, logger)
	defer feed.stop()

	if plain {
		return watchPlain(ctx, cmd.OutOrStdout(), feed)
	}
	return watchTUI(ctx, feed)
}

func watchPlain(ctx context.Context, out io.Writer, feed *previewFeed) error {
	if err := feed.start(ctx); err != nil {
		return err
	}
	go feed.monitor(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-feed.ctrl.Subscribe():
			fmt.Fprintf(out, "%s  %s, %d unread\n", time.Now().Format("15:04:05"), st.Status, preview.TotalUnread(st.Previews))
			for _, p := range st.Previews {
				title := p.Title
				if title == "" {
					title = p.TeamID
				}
				fmt.Fprintf(out, "  %-32s %3d  %s\n", utils.Truncate(title, 32), p.UnreadCount, utils.Truncate(p.RecentMessage, 40))
			}
		}
	}
}

func watchTUI(ctx context.Context, feed *previewFeed) error {
	app := tview.NewApplication()

	previewList := tview.NewList().ShowSecondaryText(true)
	previewList.SetTitle("Chats (Enter to mark read, r to reconnect, q to quit)").
		SetTitleAlign(tview.AlignLeft).
		SetBorder(true)

	statusView := tview.NewTextView().SetDynamicColors(true)

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(previewList, 0, 1, true).
		AddItem(statusView, 1, 0, false)

	var current []preview.Preview

	render := func(st *ui.State) {
		selected := previewList.GetCurrentItem()
		previewList.Clear()
		current = st.Previews
		for _, p := range st.Previews {
			main, secondary := ui.FormatPreview(p)
			previewList.AddItem(main, secondary, 0, nil)
		}
		if selected < previewList.GetItemCount() {
			previewList.SetCurrentItem(selected)
		}

		status := fmt.Sprintf("%s, %d unread", st.Status, preview.TotalUnread(st.Previews))
		statusView.SetText(ui.FormatStatus(status, st.Err))
	}

	previewList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if index >= len(current) {
			return
		}
		teamID := current[index].TeamID
		go func() {
			if err := feed.client.MarkRead(ctx, teamID); err != nil {
				feed.publish(feed.list.Snapshot(), err)
			}
		}()
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyESC, event.Rune() == 'q':
			app.Stop()
			return nil
		case event.Rune() == 'r':
			go func() {
				err := <-feed.sync.Activate(ctx, feed.token)
				feed.publish(feed.list.Snapshot(), err)
			}()
			return nil
		}
		return event
	})

	go func() {
		if err := feed.start(ctx); err != nil {
			feed.publish(feed.list.Snapshot(), err)
		}
	}()
	go feed.monitor(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case st := <-feed.ctrl.Subscribe():
				app.QueueUpdateDraw(func() {
					render(st)
				})
			}
		}
	}()

	return app.SetRoot(mainLayout, true).SetFocus(previewList).Run()
}

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Show chat previews and keep them updated live",
		Args:  cobra.NoArgs,
		RunE:  withEnv(WatchHandler),
	}
	watchCmd.Flags().String("on-miss", preview.MissAppend.String(), "What to do with updates for chats not in the list: ignore, append or error")
	watchCmd.Flags().Bool("plain", false, "Print updates as text instead of the full screen view")
	watchCmd.Flags().String("log-file", "", "Write logs here while the full screen view is open")
	return watchCmd
}
