package twilio

import (
	"github.com/twilio/twilio-go/twiml"
)

// TwiML renders inline webhook replies as a TwiML messaging response.
type TwiML struct{}

// Render returns <Response><Message>text</Message></Response>, or an empty
// <Response/> when text is empty.
func (TwiML) Render(text string) (string, error) {
	if text == "" {
		return twiml.Messages(nil)
	}
	return twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: text},
	})
}

// ContentType is the media type Twilio expects for TwiML.
func (TwiML) ContentType() string {
	return "text/xml"
}
