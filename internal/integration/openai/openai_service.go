package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Commands the agent may choose
const (
	CommandGetSensorStats = "GetSensorStats"
	CommandGetAlerts      = "GetAlerts"
	CommandGeneralQuery   = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string `json:"command_name" jsonschema_description:"The command to execute: GetSensorStats, GetAlerts or GeneralQuery"`
	SensorName  string `json:"sensor_name" jsonschema_description:"The exact name of the sensor from the known list, if applicable"`
	UserMessage string `json:"user_message" jsonschema_description:"A short message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, knownSensors []string) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
	logger *zap.Logger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey string, logger *zap.Logger) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	schema := GenerateSchema[AgentResponse]()

	return &openAIServiceImpl{
		client: client,
		schema: schema,
		logger: logger,
	}, nil
}

// BuildSystemPrompt returns the instructions sent with every query
func BuildSystemPrompt(knownSensors []string) string {
	return fmt.Sprintf(`You are the assistant of AquaGuard, a household water quality monitoring dashboard.
Households install sensors on overhead tanks, underground tanks, kitchen taps and storage buckets.
Each sensor measures pH (safe range 6.5-8.5), TDS (safe below 500 ppm) and turbidity (safe below 5 NTU).

Known sensors: %s

Behavior:
1. If the user asks about the water quality, readings or statistics of one sensor:
   - command_name = "GetSensorStats"
   - sensor_name = the matching name from the known sensors list, or "" if none matches
   - user_message = a one-line confirmation in the user's language
2. If the user asks about alerts, warnings or problems in general:
   - command_name = "GetAlerts"
   - sensor_name = ""
   - user_message = a one-line confirmation in the user's language
3. Anything else (greetings, general water questions):
   - command_name = "GeneralQuery"
   - sensor_name = ""
   - user_message = a short helpful answer in the user's language

Output **strictly** in JSON.`, strings.Join(knownSensors, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, knownSensors []string) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, sensor name, and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	respFormat := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(BuildSystemPrompt(knownSensors)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: respFormat,
		Model:          openai.ChatModelGPT4o,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	return ParseAgentResponse(chat.Choices[0].Message.Content, s.logger)
}

// ParseAgentResponse decodes the agent's JSON answer and normalises unknown commands
func ParseAgentResponse(content string, logger *zap.Logger) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		if logger != nil {
			logger.Warn("Failed to unmarshal OpenAI response", zap.Error(err), zap.String("raw_response", content))
		}
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	switch agentResp.CommandName {
	case CommandGetSensorStats, CommandGetAlerts, CommandGeneralQuery:
	default:
		agentResp.CommandName = CommandGeneralQuery
	}

	return &agentResp, nil
}
