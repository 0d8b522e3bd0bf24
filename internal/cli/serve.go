package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kamlaman/trivia/internal/config"
	"github.com/kamlaman/trivia/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func runServer(configPath string) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
	return nil
}

func loadConfig(path string) (server.Config, error) {
	var c server.Config

	// Sensible single-machine defaults; the file and environment override.
	c.HTTP.Port = 8080
	c.Game.Session = "default"
	c.Game.OpenSeconds = 15
	c.Game.RevealDelaySeconds = 10
	c.Game.AdvanceDelaySeconds = 10
	c.Game.MaxWinners = 5

	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
