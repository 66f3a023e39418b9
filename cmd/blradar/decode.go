package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/blradar/internal/adv"
	"github.com/srg/blradar/internal/bledb"
	"github.com/srg/blradar/internal/discovery"
	"github.com/srg/blradar/internal/vendor"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a raw advertisement payload",
	Long: `Decode a raw BLE advertisement payload into its AD structures and report
the vendor, the Apple Continuity message type and any AirDrop discovery
fingerprints it carries.

The payload is given in hex; spaces, colons and a 0x prefix are ignored.`,
	Example: `  blradar decode 02010617ff4c000512000000000000000001ff8d00000000000000
  blradar decode "02 01 06 05 09 54 69 6c 65" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var decodeFormat string

func init() {
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "text", "Output format (text, json)")
}

type decodedRecord struct {
	Type     byte   `json:"type"`
	TypeName string `json:"typeName"`
	Data     string `json:"data"`
}

type decodeResult struct {
	Records      []decodedRecord `json:"records"`
	CompanyID    *uint16         `json:"companyId,omitempty"`
	Vendor       string          `json:"vendor,omitempty"`
	Continuity   string          `json:"continuity,omitempty"`
	Fingerprints []string        `json:"fingerprints,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	if decodeFormat != "text" && decodeFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [text json]", decodeFormat)
	}

	raw, err := parseHexPayload(args[0])
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	result := decodePayload(raw)
	if decodeFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	printDecodeResult(cmd.OutOrStdout(), result)
	return nil
}

func parseHexPayload(s string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	clean = strings.NewReplacer(" ", "", ":", "", "-", "").Replace(clean)
	if clean == "" {
		return nil, fmt.Errorf("empty payload")
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return raw, nil
}

func decodePayload(raw []byte) decodeResult {
	records := adv.Decode(raw)

	result := decodeResult{Records: make([]decodedRecord, 0, len(records))}
	for _, r := range records {
		result.Records = append(result.Records, decodedRecord{
			Type:     r.Type,
			TypeName: adv.TypeName(r.Type),
			Data:     hex.EncodeToString(r.Data),
		})
	}

	if id, ok := vendor.CompanyID(records); ok {
		result.CompanyID = &id
		if name, ok := bledb.LookupCompany(id); ok {
			result.Vendor = name
		}
	}
	if t, ok := vendor.AppleContinuity(records); ok {
		result.Continuity = t.String()
	}
	for _, fp := range discovery.Extract(records) {
		result.Fingerprints = append(result.Fingerprints, fp.String())
	}
	return result
}

func printDecodeResult(w io.Writer, r decodeResult) {
	if len(r.Records) == 0 {
		fmt.Fprintln(w, "No AD structures found")
		return
	}

	fmt.Fprintln(w, "Records:")
	for i, rec := range r.Records {
		fmt.Fprintf(w, "  [%d] %s (0x%02X): %s\n", i, rec.TypeName, rec.Type, rec.Data)
	}

	if r.CompanyID != nil {
		name := r.Vendor
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(w, "Vendor:       %s (0x%04X)\n", name, *r.CompanyID)
	}
	if r.Continuity != "" {
		fmt.Fprintf(w, "Continuity:   %s\n", r.Continuity)
	}
	if len(r.Fingerprints) > 0 {
		fmt.Fprintf(w, "Fingerprints: %s\n", strings.Join(r.Fingerprints, " "))
	}
}
