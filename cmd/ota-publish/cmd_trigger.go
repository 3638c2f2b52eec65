package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otaflow/ota-agent/internal/messaging"
)

type cmdTrigger struct {
	flagURL     string
	flagSubject string
	flagCreds   string
	flagToken   string
	flagWait    time.Duration
}

func (c *cmdTrigger) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "trigger"
	cmd.Short = "Ask agents to check for updates"
	cmd.Long = "Ask agents to check for updates\n\nWith --wait, the first agent answer is printed: started, busy or ignored."
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.run

	cmd.Flags().StringVar(&c.flagURL, "nats-url", "nats://127.0.0.1:4222", "Broker URL")
	cmd.Flags().StringVar(&c.flagSubject, "subject", messaging.DefaultTriggerSubject, "Trigger subject")
	cmd.Flags().StringVar(&c.flagCreds, "creds", "", "Broker credentials file")
	cmd.Flags().StringVar(&c.flagToken, "token", "", "Broker token")
	cmd.Flags().DurationVar(&c.flagWait, "wait", 0, "Wait this long for an agent answer")

	return cmd
}

func (c *cmdTrigger) run(cmd *cobra.Command, _ []string) error {
	conn, err := messaging.Connect(messaging.Options{
		URL:             c.flagURL,
		Name:            "ota-publish",
		Token:           c.flagToken,
		CredentialsFile: c.flagCreds,
		Timeout:         10 * time.Second,
	})
	if err != nil {
		return err
	}

	defer conn.Close()

	if c.flagWait > 0 {
		reply, err := conn.RequestWithContext(cmd.Context(), c.flagSubject, []byte(messaging.TriggerPayload))
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(reply.Data))

		return err
	}

	err = conn.Publish(c.flagSubject, []byte(messaging.TriggerPayload))
	if err != nil {
		return err
	}

	return conn.Flush()
}
