package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/rosatel/rosatel-ai-platform/pkg/logging"
)

// Known test contacts; conversations from these skip LLM classification.
var TestContacts = map[string]bool{
	"51900000000": true,
}

// BedrockConverseAPI is the subset of the Bedrock client used for classification.
type BedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Classifier auto-labels archived sales conversations via Bedrock.
type Classifier struct {
	client  BedrockConverseAPI
	modelID string
	logger  *logging.Logger
}

// NewClassifier creates a Classifier. modelID should be a small, cheap model ARN/ID.
func NewClassifier(client BedrockConverseAPI, modelID string, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{client: client, modelID: modelID, logger: logger}
}

// Classify returns Labels for the given conversation messages.
// If contact is a known test number, it returns test_internal labels without calling the LLM.
func (c *Classifier) Classify(ctx context.Context, contact string, messages []Message) (*Labels, error) {
	if TestContacts[contact] {
		return &Labels{
			ConversationCategory: "test_internal",
			Sentiment:            "neutral",
			AutoLabeled:          true,
			LabelModel:           "test_detection",
		}, nil
	}

	if c.client == nil {
		return defaultLabels(), nil
	}

	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		System: []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: classificationSystemPrompt},
		},
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: classificationPrompt(sb.String())},
				},
			},
		},
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(512),
			Temperature: aws.Float32(0.0),
		},
	}

	resp, err := c.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("archive: bedrock converse: %w", err)
	}

	text := extractResponseText(resp)
	if text == "" {
		return defaultLabels(), nil
	}

	return parseLabelsJSON(text)
}

func extractResponseText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	output, ok := resp.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(output.Value.Content) == 0 {
		return ""
	}
	textBlock, ok := output.Value.Content[0].(*brtypes.ContentBlockMemberText)
	if !ok {
		return ""
	}
	return textBlock.Value
}

func parseLabelsJSON(text string) (*Labels, error) {
	// The model may wrap the JSON in markdown code fences.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return defaultLabels(), nil
	}
	jsonStr := text[start : end+1]

	var labels Labels
	if err := json.Unmarshal([]byte(jsonStr), &labels); err != nil {
		return defaultLabels(), nil
	}
	labels.AutoLabeled = true
	labels.LabelModel = "bedrock"
	labels.HumanReviewed = false
	return &labels, nil
}

func defaultLabels() *Labels {
	return &Labels{
		ConversationCategory: "browsing",
		Sentiment:            "neutral",
	}
}

const classificationSystemPrompt = `You are a conversation classifier for a flower shop sales assistant. Analyze the conversation and return a JSON object with classification labels. Be precise and conservative.`

func classificationPrompt(conversationText string) string {
	return fmt.Sprintf(`Classify this flower shop sales conversation. Return ONLY a JSON object with these fields:

{
  "conversation_category": "purchase|quote_request|browsing|abandoned_cart|complaint|test_internal",
  "sentiment": "positive|neutral|negative|hostile",
  "upsell_accepted": true/false,
  "occasion_detected": "cumpleanos|aniversario|condolencias|san_valentin|dia_de_la_madre|otro|"
}

Rules:
- conversation_category: "purchase" only if the customer generated a checkout; "abandoned_cart" if items were added but no checkout; choose the most specific applicable category
- upsell_accepted: true only if the customer added a suggested complementary product (chocolates, wine, plush) to their cart
- occasion_detected: the gifting occasion the customer mentioned, empty string if none
- sentiment: overall tone of the customer messages

Conversation:
%s`, conversationText)
}
