package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/roamline/roamline/internal/config"
	"github.com/roamline/roamline/internal/domain"
	"github.com/spf13/cobra"
)

// newTurnCmd runs a single conversation turn against a locally wired
// engine. Handy for trying prompts without standing the server up.
func newTurnCmd() *cobra.Command {
	var (
		sessionID string
		uiAction  string
		uiPayload string
	)

	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Run one conversation turn locally",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			st, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sv, err := buildSupervisor(cfg, st)
			if err != nil {
				return err
			}

			if sessionID == "" {
				session, err := st.Create(domain.TripInfo{})
				if err != nil {
					return err
				}
				sessionID = session.ID
				fmt.Fprintf(os.Stderr, "created session %s\n", sessionID)
			}

			req := domain.TurnRequest{SessionID: sessionID}
			if uiAction != "" {
				req.Trigger = domain.TriggerUIAction
				req.UIAction = &domain.UIAction{Type: uiAction}
				if uiPayload != "" {
					req.UIAction.Payload = json.RawMessage(uiPayload)
				}
			} else {
				req.Trigger = domain.TriggerUserMessage
				req.Message = strings.Join(args, " ")
			}

			resp, err := sv.RunTurn(cmd.Context(), req)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "existing session id (a new session is created when empty)")
	cmd.Flags().StringVar(&uiAction, "ui-action", "", "send a structured UI action instead of a message")
	cmd.Flags().StringVar(&uiPayload, "ui-payload", "", "JSON payload for --ui-action")
	return cmd
}
