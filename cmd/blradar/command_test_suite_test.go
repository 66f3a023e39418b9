package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/devicefactory"
	"github.com/srg/blradar/internal/testutils"
)

// Test device addresses for consistent fake device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestDeviceAddress2 = "00:00:00:00:00:02"
)

// CommandTestSuite runs blradar commands against a fake scanning device.
type CommandTestSuite struct {
	suite.Suite

	Device   *testutils.FakeScanningDevice
	original func() (device.ScanningDevice, error)
}

func (s *CommandTestSuite) SetupTest() {
	s.Device = testutils.NewFakeScanningDevice()
	s.original = devicefactory.DeviceFactory
	devicefactory.DeviceFactory = func() (device.ScanningDevice, error) { return s.Device, nil }
}

func (s *CommandTestSuite) TearDownTest() {
	devicefactory.DeviceFactory = s.original
}

// Advertise replaces the advertisements the fake device replays.
func (s *CommandTestSuite) Advertise(ads ...device.Advertisement) {
	s.Device = testutils.NewFakeScanningDevice(ads...)
}

// ExecuteCommand runs blradar with args and returns what it wrote to stdout.
// Flags are reset to their defaults first; commands keep them in package vars.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	resetFlags(rootCmd)

	stdout := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

// WriteFile writes content into the test's temp dir and returns the path.
func (s *CommandTestSuite) WriteFile(name, content string) string {
	path := filepath.Join(s.T().TempDir(), name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
