package lineutil

// LINE API character limits (rune count).
// References: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxAltTextLength     = 400  // Template message alt text length
	MaxSenderNameLength  = 20   // Sender name shown above bot messages

	// Buttons template limits
	MaxTemplateTitleLength   = 40  // Buttons template title
	MaxTemplateTextNoImage   = 160 // Buttons template text without image
	MaxTemplateTextWithImage = 60  // Buttons template text with image
	MaxTemplateActionCount   = 4   // Max actions per template
	MaxActionLabelLength     = 20  // Action button label

	MaxURILength = 1000 // URI action target
)
