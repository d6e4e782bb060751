package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/graph-arbitrage/internal/blockchain/solbc"
	"github.com/rovshanmuradov/graph-arbitrage/internal/report"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <token-account>",
	Short: "Read a token account balance from the configured RPC node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := solana.PublicKeyFromBase58(args[0])
		if err != nil {
			return fmt.Errorf("invalid token account: %w", err)
		}
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		client := rpcClient(rt.cfg, rt.log.WithComponent("balance"), nil)
		amount, err := client.GetTokenAccountBalance(cmd.Context(), account)
		if solbc.IsAccountNotFoundError(err) {
			return fmt.Errorf("token account %s does not exist", account)
		}
		if err != nil {
			return err
		}
		r := report.NewRenderer(int32(amount.Decimals))
		fmt.Fprintln(cmd.OutOrStdout(), r.Balance(account.String(), amount.Amount))
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <reason>",
	Short: "Record an explicit cancel in the audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		log := rt.log.WithOperation("cancel")

		audits, err := openAudit(rt.cfg, auditOptions{store: true}, log)
		if err != nil {
			return err
		}
		defer audits.shutdown(log)

		// Cancel touches no balances; the scenario only supplies the owner.
		w, err := loadWorld(cmd.Context(), scenarioFile, rt.cfg, log, nil)
		if err != nil {
			return err
		}
		svc, err := w.service(rt.cfg, log, serviceOptions(audits, nil)...)
		if err != nil {
			return err
		}
		if err := svc.Cancel(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cancel recorded:", args[0])
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVarP(&scenarioFile, "file", "f", "configs/scenario.example.yaml", "scenario file")
	rootCmd.AddCommand(balanceCmd, cancelCmd)
}
