// Package main generates the company identifier table from Nordic Semiconductor's
// bluetooth-numbers-database.
//
// This tool downloads the company id list from Nordic's GitHub repository and
// writes it to company_ids.yaml, which the bledb package embeds.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/srg/blradar/internal/bledb"
	"gopkg.in/yaml.v3"
)

const (
	cacheDir  = "../../.tmp/bledb-cache"
	outFile   = "company_ids.yaml"
	vendorURL = "https://raw.githubusercontent.com/NordicSemiconductor/bluetooth-numbers-database/master/v1/company_ids.json"
	header    = "# Code generated by internal/bledb/gen; DO NOT EDIT.\n"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main generation logic.
func run() error {
	fmt.Println("Generating company identifier table...")

	vendorsPath, err := ensureCached("vendors.json", vendorURL)
	if err != nil {
		return err
	}
	companies, err := parseCompanies(vendorsPath)
	if err != nil {
		return err
	}

	db := bledb.Database{
		Version:   time.Now().UTC().Format(time.RFC3339),
		Source:    vendorURL,
		Companies: companies,
	}

	out, err := yaml.Marshal(&db)
	if err != nil {
		return fmt.Errorf("failed to encode company table: %w", err)
	}
	if err := os.WriteFile(outFile, append([]byte(header), out...), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}

	fmt.Println("Generated", outFile, "with", len(companies), "companies")
	return nil
}

// ensureCached downloads a file from the given URL if it doesn't exist in the cache.
// Returns the path to the cached file.
func ensureCached(filename, url string) (string, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	path := filepath.Join(cacheDir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("Downloading", filename)
		resp, err := http.Get(url)
		if err != nil {
			return "", fmt.Errorf("failed to download %s: %w", filename, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("failed to download %s: status %d", filename, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read response body for %s: %w", filename, err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return "", fmt.Errorf("failed to write cache file %s: %w", filename, err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to check cache file %s: %w", filename, err)
	} else {
		fmt.Println("Using cached file", filename)
	}
	return path, nil
}

// parseCompanies reads Nordic's company list. Older snapshots use "id",
// current ones use "code".
func parseCompanies(path string) ([]bledb.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached file %s: %w", path, err)
	}

	var arr []struct {
		Code *int   `json:"code"`
		ID   *int   `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array %s: %w", path, err)
	}

	seen := make(map[uint16]string, len(arr))
	companies := make([]bledb.Company, 0, len(arr))
	for _, v := range arr {
		code := v.Code
		if code == nil {
			code = v.ID
		}
		if code == nil || v.Name == "" || *code < 0 || *code > 0xFFFF {
			continue
		}

		id := uint16(*code)
		if existing, dup := seen[id]; dup {
			if existing != v.Name {
				fmt.Fprintf(os.Stderr, "WARNING: Duplicate company id 0x%04X (keeping %q, skipping %q)\n",
					id, existing, v.Name)
			}
			continue
		}
		seen[id] = v.Name
		companies = append(companies, bledb.Company{ID: id, Name: v.Name})
	}

	sort.Slice(companies, func(i, j int) bool {
		return companies[i].ID < companies[j].ID
	})
	return companies, nil
}
