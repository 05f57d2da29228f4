package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	engine "github.com/halcyonlab/halcyon/internal/engine/engine_v1"
)

type GenerateCmdTestSuite struct {
	suite.Suite
	tempDir string
	prevDir string
}

func TestGenerateCmdSuite(t *testing.T) {
	suite.Run(t, new(GenerateCmdTestSuite))
}

func (suite *GenerateCmdTestSuite) SetupTest() {
	prevDir, err := os.Getwd()
	suite.Require().NoError(err)
	suite.prevDir = prevDir

	suite.tempDir = suite.T().TempDir()
	suite.Require().NoError(os.Chdir(suite.tempDir))
}

func (suite *GenerateCmdTestSuite) TearDownTest() {
	suite.Require().NoError(os.Chdir(suite.prevDir))
}

func (suite *GenerateCmdTestSuite) TestSchemaGeneration() {
	main()

	schemaPath := filepath.Join(suite.tempDir, "config", "backtest-engine-v1-config.json")

	schemaBytes, err := os.ReadFile(schemaPath)
	suite.Require().NoError(err)

	var schema map[string]any
	suite.Require().NoError(json.Unmarshal(schemaBytes, &schema))
	suite.Contains(string(schemaBytes), "initial_capital")
}

func (suite *GenerateCmdTestSuite) TestSampleConfigIsValid() {
	main()

	samplePath := filepath.Join(suite.tempDir, "config", "backtest-engine-v1-config.yaml")

	sampleBytes, err := os.ReadFile(samplePath)
	suite.Require().NoError(err)

	parsed, err := engine.ParseConfig(string(sampleBytes))
	suite.Require().NoError(err)
	suite.InDelta(10000, parsed.InitialCapital, 1e-9)
	suite.InDelta(0.5, parsed.Sizing.PositionRatio, 1e-9)
}

func (suite *GenerateCmdTestSuite) TestSampleConfigNotOverwritten() {
	suite.Require().NoError(os.MkdirAll("config", 0755))

	samplePath := filepath.Join("config", "backtest-engine-v1-config.yaml")
	suite.Require().NoError(os.WriteFile(samplePath, []byte("initial_capital: 42\n"), 0644))

	main()

	content, err := os.ReadFile(samplePath)
	suite.Require().NoError(err)
	suite.Contains(string(content), "42")
}
