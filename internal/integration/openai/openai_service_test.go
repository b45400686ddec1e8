package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewOpenAIServiceRequiresKey(t *testing.T) {
	svc, err := NewOpenAIService("", zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, svc)
}

func TestParseAgentResponse(t *testing.T) {
	resp, err := ParseAgentResponse(`{"command_name":"GetSensorStats","sensor_name":"Kitchen Tap","user_message":"Checking the kitchen tap."}`, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, CommandGetSensorStats, resp.CommandName)
	assert.Equal(t, "Kitchen Tap", resp.SensorName)

	resp, err = ParseAgentResponse(`{"command_name":"DropTables","sensor_name":"","user_message":"hi"}`, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, CommandGeneralQuery, resp.CommandName)

	_, err = ParseAgentResponse("not json", nil)
	assert.Error(t, err)
}

func TestBuildSystemPromptListsSensors(t *testing.T) {
	prompt := BuildSystemPrompt([]string{"Overhead Tank", "Kitchen Tap"})
	assert.Contains(t, prompt, "Known sensors: Overhead Tank, Kitchen Tap")
	assert.Contains(t, prompt, CommandGetAlerts)
}

func TestGenerateSchema(t *testing.T) {
	assert.NotNil(t, GenerateSchema[AgentResponse]())
}
