package main

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blradar/internal/testutils"
)

const listedProfilesYAML = `
profiles:
  - id: tile
    name: Tile trackers
    filter: {type: name, substring: tile}
  - id: alice
    active: false
    filter: {type: airdrop_contact, contact: alice@example.com}
`

type ProfilesCommandTestSuite struct {
	CommandTestSuite
}

func (s *ProfilesCommandTestSuite) TestTable() {
	path := s.WriteFile("profiles.yaml", listedProfilesYAML)

	output, err := s.ExecuteCommand("profiles", path)
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(output, `
ID     NAME           ACTIVE  FILTER
tile   Tile trackers  yes     name("tile")
alice  alice          no      airdrop_contact("alice@example.com")

2 profiles, 1 active
`)
}

func (s *ProfilesCommandTestSuite) TestJSON() {
	path := s.WriteFile("profiles.yaml", listedProfilesYAML)

	output, err := s.ExecuteCommand("profiles", "--format", "json", path)
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(output, `{
		"profiles": [
			{
				"id": "tile",
				"name": "Tile trackers",
				"active": true,
				"filter": {"type": "name", "substring": "tile", "caseSensitive": false}
			},
			{
				"id": "alice",
				"active": false,
				"filter": {"type": "airdrop_contact", "contact": "alice@example.com"}
			}
		]
	}`)
}

func (s *ProfilesCommandTestSuite) TestInvalidFilter() {
	path := s.WriteFile("profiles.yaml", `
profiles:
  - id: broken
    filter: {type: not}
`)

	_, err := s.ExecuteCommand("profiles", path)
	s.Require().Error(err)
	s.Contains(err.Error(), path)
}

func (s *ProfilesCommandTestSuite) TestErrors() {
	_, err := s.ExecuteCommand("profiles", "/nonexistent/profiles.yaml")
	s.ErrorContains(err, "failed to read profiles")

	_, err = s.ExecuteCommand("profiles")
	s.Error(err)

	_, err = s.ExecuteCommand("profiles", "--format", "yaml", "x.yaml")
	s.ErrorContains(err, "invalid format")
}

func TestProfilesCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ProfilesCommandTestSuite))
}
