package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"realtime-sketch/internal/client"
	"realtime-sketch/internal/config"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/registry"
	"realtime-sketch/internal/roomcode"
)

var _ room = (*client.Session)(nil)

// palette 색상을 지정하지 않았을 때 고르는 커서 색상
var palette = []string{"#f43f5e", "#f97316", "#eab308", "#22c55e", "#06b6d4", "#3b82f6", "#8b5cf6", "#ec4899"}

func buildJoinCmd(cfg *config.ClientConfig) *cobra.Command {
	var announce bool

	cmd := &cobra.Command{
		Use:   "join <room-code>",
		Short: "Join a room and draw/chat from stdin",
		Long: `Join a room and read commands from stdin.

Lines starting with "/" are drawing commands (type /help for the list).
Any other line is sent as a chat message.`,
		Example: `  sketchctl join ABCD12 --name Alice
  sketchctl join abcd12 --name Bob --color "#22c55e"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Color == "" {
				cfg.Color = palette[rand.Intn(len(palette))]
			}

			reg := registry.NewClient(cfg.RegistryURL, cfg.RegistryTimeout)
			if announce {
				if _, err := reg.Create(args[0], cfg.Name); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠️ room registration failed: %v\n", err)
				}
			}

			s, err := client.Join(cmd.Context(), *cfg, args[0], client.Options{Registry: reg})
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			s.OnChat(func(msg model.ChatMessage) { printChat(out, msg) })
			s.OnParticipants(func(list []model.Participant) { printParticipants(out, list) })

			fmt.Fprintf(out, "🏠 Room %s (type /help for commands)\n", s.RoomID())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			done := make(chan error, 1)
			go func() { done <- repl(s, cmd.InOrStdin(), out) }()

			select {
			case err := <-done:
				return err
			case <-sigCh:
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&cfg.Name, "name", "n", cfg.Name, "Display name (empty or \"guest\" stays anonymous)")
	cmd.Flags().StringVar(&cfg.Color, "color", cfg.Color, "Cursor color (random when empty)")
	cmd.Flags().IntVar(&cfg.EraserSize, "eraser-size", cfg.EraserSize, "Eraser diameter")
	cmd.Flags().BoolVar(&announce, "register", false, "Register the room with this name as host before joining")
	return cmd
}

func buildLookupCmd(cfg *config.ClientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <room-code>",
		Short: "Look up a room in the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.NewClient(cfg.RegistryURL, cfg.RegistryTimeout)
			resp, err := reg.Lookup(args[0])
			if errors.Is(err, registry.ErrRoomNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "Room %s is not registered\n", roomcode.Normalize(args[0]))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Room %s hosted by %s\n", roomcode.Normalize(args[0]), resp.HostName)
			return nil
		},
	}
}

func buildCreateCmd(cfg *config.ClientConfig) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "create [room-code]",
		Short: "Register a room (a new code is generated when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := roomcode.Generate()
			if len(args) == 1 {
				code = args[0]
			}
			if host == "" {
				host = cfg.Name
			}
			if host == "" {
				return fmt.Errorf("--host is required")
			}

			reg := registry.NewClient(cfg.RegistryURL, cfg.RegistryTimeout)
			resp, err := reg.Create(code, host)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Room %s registered (host=%s)\n", resp.RoomID, resp.Host)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host display name")
	return cmd
}

func buildCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Print a new random room code",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), roomcode.Generate())
		},
	}
}
