package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"linkboard/internal/bot"
	"linkboard/internal/domain"
	"linkboard/internal/links"
	"linkboard/internal/page"
	"linkboard/internal/render"
)

// newRootCmd builds the command tree. The returned func releases what the
// executed command set up and must run after Execute returns.
func newRootCmd() (*cobra.Command, func()) {
	var (
		configDir string
		a         *app
	)

	root := &cobra.Command{
		Use:          "linkboard",
		Short:        "Manage property listing links of a management page",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = newApp(configDir, cmd.ErrOrStderr())
			return err
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory containing config.yaml")

	// Subcommands read a lazily so they see the app built in PersistentPreRunE.
	get := func() *app { return a }
	root.AddCommand(
		newRefreshCmd(get),
		newListCmd(get),
		newAddCmd(get),
		newDebugCmd(get),
		newUpdateCmd(get),
		newDeleteCmd(get),
		newPatchCmd(get),
		newBotCmd(get),
	)
	cleanup := func() {
		if a != nil {
			a.close()
		}
	}
	return root, cleanup
}

func newRefreshCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reset every filter and print the full link list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer a.closeRepo(repo)

			doc := page.NewMemory()
			term := render.NewTerminal(cmd.OutOrStdout(), repo, a.cfg.ManagementSiteID, a.log)
			sess := a.newSession(doc, render.Multi{doc, term}, render.NewConsole(cmd.ErrOrStderr(), a.log))
			return a.svc.ForceRefresh(cmd.Context(), sess)
		},
	}
}

func newListCmd(get func() *app) *cobra.Command {
	var (
		filters domain.FilterState
		date    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the link list narrowed by filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer a.closeRepo(repo)

			doc := page.NewMemory()
			term := render.NewTerminal(cmd.OutOrStdout(), repo, a.cfg.ManagementSiteID, a.log)
			sess := a.newSession(doc, render.Multi{doc, term}, render.NewConsole(cmd.ErrOrStderr(), a.log))
			sess.SetFilters(filters)

			_, err = a.svc.LoadLinks(cmd.Context(), sess, date)
			return err
		},
	}
	cmd.Flags().StringVar(&filters.Platform, "platform", domain.FilterAll, "platform filter")
	cmd.Flags().StringVar(&filters.User, "user", domain.FilterAll, "contributor filter")
	cmd.Flags().StringVar(&filters.Like, "like", domain.FilterAll,
		fmt.Sprintf("%s, %s or %s", domain.FilterAll, domain.LikeLiked, domain.LikeDisliked))
	cmd.Flags().StringVar(&filters.Guarantee, "guarantee", domain.FilterAll,
		fmt.Sprintf("%s, %s or %s", domain.FilterAll, domain.GuaranteeAvailable, domain.GuaranteeUnavailable))
	cmd.Flags().StringVar(&date, "date", "", "only links added on this day (YYYY-MM-DD)")
	return cmd
}

func newAddCmd(get func() *app) *cobra.Command {
	var (
		memo      string
		insurance bool
		platform  string
		user      string
	)
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a link and print the refreshed list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer a.closeRepo(repo)

			ctx := cmd.Context()
			doc := page.NewMemory()
			var url string
			if len(args) == 1 {
				url = args[0]
			}
			if err := fillLinkForm(cmd, doc, url, memo, insurance); err != nil {
				return err
			}

			term := render.NewTerminal(cmd.OutOrStdout(), repo, a.cfg.ManagementSiteID, a.log)
			sess := a.newSession(doc, render.Multi{doc, term}, render.NewConsole(cmd.ErrOrStderr(), a.log))
			if platform != "" {
				sess.CurrentPlatform = platform
			}
			if user != "" {
				sess.CurrentUser = user
			}

			res, err := a.svc.AddLink(ctx, sess)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "링크가 추가되었습니다 (ID %d)\n", res.ID)

			// Let the scheduled refresh print the list before exiting. An
			// interrupt stops it instead.
			if n := a.timers.Pending(); n > 0 {
				a.log.WithField("pending", n).Debug("Waiting for scheduled refresh")
			}
			return a.timers.WaitContext(ctx)
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "memo for the link")
	cmd.Flags().BoolVar(&insurance, "insurance", false, "mark the link as covered by guarantee insurance")
	cmd.Flags().StringVar(&platform, "platform", "", "platform recorded for the link (default from config, then zigbang)")
	cmd.Flags().StringVar(&user, "user", "", "user recorded as the author (default from config)")
	return cmd
}

func fillLinkForm(cmd *cobra.Command, doc page.Document, url, memo string, insurance bool) error {
	ctx := cmd.Context()
	if err := doc.SetValue(ctx, page.LinkURL, url); err != nil {
		return err
	}
	if err := doc.SetValue(ctx, page.LinkMemo, memo); err != nil {
		return err
	}
	return doc.SetChecked(ctx, page.GuaranteeInsurance, insurance)
}

func newDebugCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debug",
		Short: "Compare the last printed list with the unfiltered API list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			repo, err := a.openRepo()
			if err != nil {
				return err
			}
			defer a.closeRepo(repo)

			ctx := cmd.Context()
			snapshot, err := repo.GetSnapshot(ctx, a.cfg.ManagementSiteID)
			if err != nil {
				return err
			}

			// The last printed list stands in for the rendered page.
			doc := page.NewMemory()
			if err := doc.DisplayLinks(ctx, snapshot); err != nil {
				return err
			}
			sess := a.newSession(doc, doc, render.NewConsole(cmd.ErrOrStderr(), a.log))

			report, err := a.svc.DebugStatus(ctx, sess)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.FormatDebugReport(report))
			return nil
		},
	}
}

func newUpdateCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <rating|like|dislike|memo|guarantee> [value...]",
		Short: "Update one field of a link",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseLinkID(args[0])
			if err != nil {
				return err
			}
			action, err := domain.ParseLinkAction(args[1], strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			if err := a.client.UpdateLink(cmd.Context(), id, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "링크 %d 수정 완료 (%s)\n", id, action.Action)
			return nil
		},
	}
}

func newDeleteCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			id, err := parseLinkID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteLink(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "링크 %d 삭제 완료\n", id)
			return nil
		},
	}
}

func parseLinkID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid link id %q", s)
	}
	return id, nil
}

func newPatchCmd(get func() *app) *cobra.Command {
	var (
		controlURL string
		pageURL    string
		match      string
		noRefresh  bool
	)
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Attach to the management page in a browser, report its state and refresh its list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx := cmd.Context()
			opts := page.RodOptions{
				ControlURL: firstNonEmpty(controlURL, a.cfg.BrowserControlURL),
				PageURL:    firstNonEmpty(pageURL, managementPageURL(a.cfg.BaseURL, a.cfg.ManagementSiteID)),
				URLMatch:   firstNonEmpty(match, a.cfg.PageURLMatch),
			}
			doc, err := page.ConnectRod(ctx, opts, a.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := doc.Close(); err != nil {
					a.log.WithError(err).Warn("Error closing browser")
				}
			}()

			if err := patchPage(cmd, a, doc, noRefresh); err != nil {
				return err
			}

			// A browser launched here closes with the command, so keep it
			// open for the user until interrupted.
			if doc.Launched() {
				fmt.Fprintln(cmd.OutOrStdout(), "브라우저를 닫으려면 Ctrl+C를 누르세요.")
				<-ctx.Done()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&controlURL, "control-url", "", "DevTools websocket URL of a running browser")
	cmd.Flags().StringVar(&pageURL, "page-url", "", "page to open when launching a browser")
	cmd.Flags().StringVar(&match, "match", "", "substring of the tab URL to attach to")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "only report, do not refresh the list")
	return cmd
}

func patchPage(cmd *cobra.Command, a *app, doc *page.Rod, noRefresh bool) error {
	ctx := cmd.Context()
	sess, err := sessionFromPage(cmd, a, doc)
	if err != nil {
		return err
	}

	report, err := a.svc.DebugStatus(ctx, sess)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.FormatDebugReport(report))

	if noRefresh {
		return nil
	}
	return a.svc.ForceRefresh(ctx, sess)
}

// sessionFromPage prefers the page's own globals over the configured values.
func sessionFromPage(cmd *cobra.Command, a *app, doc *page.Rod) (*links.Session, error) {
	g, err := doc.Globals(cmd.Context())
	if err != nil {
		return nil, err
	}
	sess := a.newSession(doc, doc, doc)
	sess.ManagementSiteID = firstNonEmpty(g.ManagementSiteID, sess.ManagementSiteID)
	sess.CurrentPlatform = firstNonEmpty(g.CurrentPlatform, sess.CurrentPlatform)
	sess.CurrentUser = firstNonEmpty(g.CurrentUser, sess.CurrentUser)
	if g.Filters != nil {
		sess.SetFilters(*g.Filters)
	}
	return sess, nil
}

func managementPageURL(baseURL, siteID string) string {
	if siteID == "" {
		return baseURL + "/"
	}
	return baseURL + "/customer/" + siteID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newBotCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve the link operations over Telegram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if a.cfg.TelegramBotToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN is not set")
			}

			botHandler, err := bot.NewHandler(a.cfg, a.svc, a.log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			go botHandler.Start(ctx)
			a.log.Info("Link bot is running. Press Ctrl+C to exit.")

			// --- Wait for Shutdown Signal ---
			<-ctx.Done()
			a.log.Info("Shutting down link bot...")
			return nil
		},
	}
}
