package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/llamadoc-voice/pkg/assistant"
	"github.com/teslashibe/llamadoc-voice/pkg/hub"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
	"github.com/teslashibe/llamadoc-voice/pkg/web"

	applog "github.com/teslashibe/llamadoc-voice/internal/log"
)

var serveStatic string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard",
	Long: `Run the dashboard: a REST API driving the assistant and a WebSocket
event stream at /ws/events.

Example:
  llamadoc-voice serve --static ./web`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h := hub.New("events", hub.WithSticky(web.StickyEvents...), hub.WithLogger(applog.L()))
		ui := web.NewUI(h, applog.L())

		a, err := newApp(ctx, cfg, ui)
		if err != nil {
			return err
		}
		defer a.Close()
		if documentID != "" {
			a.useDocument(ctx, documentID)
		}

		srv, err := web.NewServer(web.Config{
			Addr:      fmt.Sprintf(":%d", cfg.Dashboard.Port),
			StaticDir: serveStatic,
		}, web.Deps{
			Controller: a.ctrl,
			Panel:      a.panel,
			Settings:   a.settings,
			Hub:        h,
			UI:         ui,
			Logger:     applog.L(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Dashboard: http://localhost:%d\n", cfg.Dashboard.Port)
		return srv.Start(ctx)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF and print its upload id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp(cmd.Context(), cfg, newConsole(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()

		up, err := a.ctrl.Upload(cmd.Context(), filepath.Base(args[0]), f)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), up.UploadID)
		return nil
	},
}

var askMuted bool

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a typed question about a document",
	Long: `Ask a typed question. The answer is printed, spoken unless --mute is
set, and saved to the document's history.

Example:
  llamadoc-voice ask -d 3f2a "What is the main finding?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, newConsole(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		defer a.Close()
		a.session.SetDocument(documentID)
		a.session.SetMuted(askMuted)

		if _, err := a.ctrl.Ask(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		return a.playback.Wait(ctx)
	},
}

var (
	listenMode  string
	listenMuted bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Ask a spoken question from the microphone",
	Long: `Capture a spoken question, answer it and speak the answer.

Recording stops on Enter, when the recognizer detects the end of the
utterance, or after capture.max_duration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mode, err := assistant.ParseMode(listenMode)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("mode") {
			mode, _ = assistant.ParseMode(cfg.Capture.Mode)
		}

		a, err := newApp(ctx, cfg, newConsole(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		defer a.Close()
		a.session.SetDocument(documentID)
		a.session.SetMuted(listenMuted)

		if err := a.ctrl.StartCapture(ctx, mode); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Press Enter to stop.")
		go func() {
			bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			a.ctrl.StopCapture()
		}()
		go func() {
			<-ctx.Done()
			a.ctrl.StopCapture()
		}()

		a.ctrl.Wait()
		return a.playback.Wait(ctx)
	},
}

var historyExport string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or export a document's history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, newConsole(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
		defer a.Close()
		a.useDocument(ctx, documentID)

		if historyExport == "" {
			return nil
		}
		f, err := os.Create(historyExport)
		if err != nil {
			return err
		}
		if err := a.panel.Export(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

var (
	downloadFormat string
	downloadOutput string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the latest answer as txt, pdf or docx",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := llamadoc.ParseFormat(downloadFormat)
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, newConsole(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()
		a.session.SetDocument(documentID)

		tmp, err := os.CreateTemp(".", "llamadoc-download-*")
		if err != nil {
			return err
		}
		defer os.Remove(tmp.Name())

		name, err := a.ctrl.Download(ctx, f, tmp)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if downloadOutput == "" {
			downloadOutput = name
		}
		if err := os.Rename(tmp.Name(), downloadOutput); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), downloadOutput)
		return nil
	},
}

var (
	settingsVoice  string
	settingsRate   int
	settingsVolume float64
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change voice settings",
	Long: `Show the voice settings, or change them with --voice, --rate and
--volume. Changes are persisted to the configured settings store.

Example:
  llamadoc-voice settings --voice female --rate 200`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if cmd.Flags().Changed("voice") && !settings.ValidVoiceType(settingsVoice) {
			return fmt.Errorf("unknown voice %q (use default, female or male)", settingsVoice)
		}
		a, err := newApp(ctx, cfg, newConsole(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer a.Close()

		vs := a.settings.Current()
		if changed(cmd, "voice", "rate", "volume") {
			vs = a.ctrl.UpdateSettings(ctx, func(v *settings.VoiceSettings) {
				if cmd.Flags().Changed("voice") {
					v.VoiceType = settingsVoice
				}
				if cmd.Flags().Changed("rate") {
					v.Rate = settingsRate
				}
				if cmd.Flags().Changed("volume") {
					v.Volume = settingsVolume
				}
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(vs)
	},
}

func changed(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func init() {
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory with the dashboard front end")
	addDocumentFlag(serveCmd, false)

	addDocumentFlag(askCmd, true)
	askCmd.Flags().BoolVar(&askMuted, "mute", false, "don't speak the answer")

	addDocumentFlag(listenCmd, true)
	listenCmd.Flags().StringVarP(&listenMode, "mode", "m", "auto", "capture mode: auto, recognize, record")
	listenCmd.Flags().BoolVar(&listenMuted, "mute", false, "don't speak the answer")

	addDocumentFlag(historyCmd, true)
	historyCmd.Flags().StringVarP(&historyExport, "export", "o", "", "write the history as JSON to this file")

	addDocumentFlag(downloadCmd, true)
	downloadCmd.Flags().StringVarP(&downloadFormat, "format", "f", "txt", "txt, pdf or docx")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file (default: server filename)")

	settingsCmd.Flags().StringVar(&settingsVoice, "voice", "", "voice type: default, female, male")
	settingsCmd.Flags().IntVar(&settingsRate, "rate", settings.DefaultRate, "speech rate in words per minute")
	settingsCmd.Flags().Float64Var(&settingsVolume, "volume", 1, "volume 0..1")
}
