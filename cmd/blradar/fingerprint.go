package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/blradar/internal/discovery"
)

// fingerprintCmd represents the fingerprint command
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <contact>...",
	Short: "Compute AirDrop discovery fingerprints of contacts",
	Long: `Compute the two-byte fingerprint an AirDrop discovery frame carries for a
phone number or email address. Use it to check which contact an airdrop_contact
profile will look for.`,
	Example: `  blradar fingerprint alice@example.com "+1 555 0100"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runFingerprint,
}

var fingerprintFormat string

func init() {
	fingerprintCmd.Flags().StringVarP(&fingerprintFormat, "format", "f", "text", "Output format (text, json)")
}

type contactFingerprint struct {
	Contact     string `json:"contact"`
	Fingerprint string `json:"fingerprint"`
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	if fingerprintFormat != "text" && fingerprintFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [text json]", fingerprintFormat)
	}

	out := make([]contactFingerprint, 0, len(args))
	for _, contact := range args {
		out = append(out, contactFingerprint{
			Contact:     strings.TrimSpace(contact),
			Fingerprint: discovery.FromContact(contact).String(),
		})
	}

	if fingerprintFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}
	for _, cf := range out {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", cf.Fingerprint, cf.Contact)
	}
	return nil
}
