package main

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blradar/internal/testutils"
)

type FingerprintCommandTestSuite struct {
	CommandTestSuite
}

func (s *FingerprintCommandTestSuite) TestText() {
	output, err := s.ExecuteCommand("fingerprint", "alice@example.com", " bob@example.com ", "+1 555 0100")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(output, `
ff8d  alice@example.com
5ff8  bob@example.com
e6c0  +1 555 0100
`)
}

func (s *FingerprintCommandTestSuite) TestJSON() {
	output, err := s.ExecuteCommand("fingerprint", "--format", "json", "alice@example.com")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(output, `[{"contact": "alice@example.com", "fingerprint": "ff8d"}]`)
}

func (s *FingerprintCommandTestSuite) TestErrors() {
	_, err := s.ExecuteCommand("fingerprint")
	s.Error(err, "at least one contact is required")

	_, err = s.ExecuteCommand("fingerprint", "--format", "csv", "alice@example.com")
	s.ErrorContains(err, "invalid format")
}

func TestFingerprintCommandTestSuite(t *testing.T) {
	suite.Run(t, new(FingerprintCommandTestSuite))
}
