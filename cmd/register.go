package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hostward/device-agent/internal/identity"
	"github.com/hostward/device-agent/internal/logger"
	"github.com/hostward/device-agent/internal/registration"
	"github.com/hostward/device-agent/internal/scheduler"
	agenttls "github.com/hostward/device-agent/internal/tls"
	"github.com/spf13/cobra"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var wait, allowFallback bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register this agent with the collector and store the issued credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.close()
			ctx := e.ctx

			v, err := e.vault()
			if err != nil {
				return err
			}
			flow, err := e.registrationFlow(v)
			if err != nil {
				return err
			}

			snap, err := e.collector(false).Collect(ctx)
			if err != nil {
				return err
			}
			req := registration.Request{
				AgentID:           e.cfg.Agent.AgentID,
				AgentName:         e.cfg.Agent.AgentName,
				Hostname:          snap.Hostname,
				OSType:            snap.OSType,
				OSVersion:         snap.OSVersion,
				DeviceFingerprint: snap.DeviceFingerprint,
			}

			out := cmd.OutOrStdout()
			resp, err := flow.Submit(ctx, req, allowFallback)
			switch {
			case errors.Is(err, registration.ErrFallbackFingerprint):
				return fmt.Errorf("%w: no hardware identifiers found, pass --allow-fallback to register anyway", err)
			case errors.Is(err, registration.ErrAlreadyRegistered):
				fmt.Fprintln(out, "Agent is already registered, checking approval status")
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "Registration submitted: %s\n", resp.Message)
			}

			var status *registration.StatusResponse
			if wait {
				status, err = flow.Wait(ctx, req.AgentID)
			} else {
				status, err = flow.Check(ctx, req.AgentID)
			}
			return reportStatus(out, status, err)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the registration is approved or rejected")
	cmd.Flags().BoolVar(&allowFallback, "allow-fallback", false, "register with a hostname-derived fingerprint")
	return cmd
}

func newCheckStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-status",
		Short: "Check the registration status once and store the credential when approved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.vault()
			if err != nil {
				return err
			}
			flow, err := e.registrationFlow(v)
			if err != nil {
				return err
			}

			status, err := flow.Check(e.ctx, e.cfg.Agent.AgentID)
			return reportStatus(cmd.OutOrStdout(), status, err)
		},
	}
}

// reportStatus prints the outcome of a status check. Pending is not an error
// unless the caller waited for a decision.
func reportStatus(out io.Writer, status *registration.StatusResponse, err error) error {
	if errors.Is(err, registration.ErrPollTimeout) {
		fmt.Fprintln(out, "Registration is still pending approval")
		return err
	}
	if err != nil {
		return err
	}

	switch status.Status {
	case registration.StatusApproved:
		if status.Token == "" {
			fmt.Fprintln(out, "Registration approved, but no token was issued yet. Run `device-agent check-status` again later")
			return nil
		}
		fmt.Fprintln(out, "Registration approved, credential stored")
		return nil
	case registration.StatusPending:
		fmt.Fprintln(out, "Registration is pending approval. Run `device-agent check-status` later")
		return nil
	case registration.StatusRejected:
		return fmt.Errorf("registration rejected: %s", status.Message)
	default:
		return errors.New("no registration found for this agent, run `device-agent init` first")
	}
}

func newRegisterCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <token>",
		Short: "Store a manually issued credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.vault()
			if err != nil {
				return err
			}

			flow := registration.NewFlow(nil, v, 0, 0)
			if err := flow.StoreToken(e.ctx, e.cfg.Agent.AgentID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential stored at %s\n", v.Paths().TokenPath)
			return nil
		},
	}
}

func newUnregisterCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister",
		Short: "Delete the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.vault()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !v.HasCredential() {
				fmt.Fprintln(out, "No credential stored")
				return nil
			}
			if err := v.DeleteCredential(); err != nil {
				return err
			}
			logger.LogAuditEvent(logger.EventCredentialDeleted, e.cfg.Agent.AgentID, map[string]interface{}{
				"path": v.Paths().TokenPath,
			})
			fmt.Fprintln(out, "Credential deleted")
			return nil
		},
	}
}

func newStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the agent identity and whether a credential is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer e.close()

			v, err := e.vault()
			if err != nil {
				return err
			}

			credential := "missing"
			if v.HasCredential() {
				credential = "present"
			}
			delivery := "disabled"
			if e.cfg.Server.Enabled {
				delivery = e.cfg.Server.URL
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", e.cm.Path())
			fmt.Fprintf(out, "Agent ID:   %s\n", e.cfg.Agent.AgentID)
			fmt.Fprintf(out, "Delivery:   %s\n", delivery)
			fmt.Fprintf(out, "Credential: %s\n", credential)
			fmt.Fprintf(out, "Key file:   %s\n", v.Paths().KeyPath)
			fmt.Fprintf(out, "Token file: %s\n", v.Paths().TokenPath)

			schedule := e.cm.GetScheduleExpr()
			if every, err := scheduler.ParseEveryExpr(schedule); err == nil {
				fmt.Fprintf(out, "Schedule:   every %s\n", every)
			} else {
				fmt.Fprintf(out, "Schedule:   %s\n", schedule)
			}

			if certFile := e.cfg.Server.CertFile; certFile != "" {
				info, err := agenttls.Inspect(certFile, time.Now())
				switch {
				case info == nil:
					fmt.Fprintf(out, "Client cert: %v\n", err)
				case err != nil:
					fmt.Fprintf(out, "Client cert: %s (%v)\n", info.Subject, err)
				default:
					fmt.Fprintf(out, "Client cert: %s, expires in %d days\n", info.Subject, info.DaysToExpiry)
				}
			}
			return nil
		},
	}
}

func newFingerprintCommand() *cobra.Command {
	var components bool

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the hardware fingerprint of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			probe := identity.DefaultProbe()
			out := cmd.OutOrStdout()

			fp, err := identity.Generate(cmd.Context(), probe)
			if err != nil {
				return fmt.Errorf("%w on %s", err, probe.Platform())
			}
			fmt.Fprintln(out, fp)

			if components {
				for _, c := range probe.Components(cmd.Context()) {
					fmt.Fprintf(out, "  %s\n", c.Kind)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&components, "components", false, "list the identifier kinds used, without their values")
	return cmd
}
