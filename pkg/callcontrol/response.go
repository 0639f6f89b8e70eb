package callcontrol

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const ContentType = "text/xml"

// Response is an ordered call-control document.
type Response struct {
	verbs []Verb
}

func NewResponse(verbs ...Verb) *Response {
	return &Response{verbs: append([]Verb(nil), verbs...)}
}

func (r *Response) Append(verbs ...Verb) *Response {
	r.verbs = append(r.verbs, verbs...)

	return r
}

func (r *Response) Verbs() []Verb {
	return r.verbs
}

func (r *Response) Len() int {
	return len(r.verbs)
}

// Ended reports whether the document already terminates the call.
func (r *Response) Ended() bool {
	for _, verb := range r.verbs {
		if _, ok := verb.(Hangup); ok {
			return true
		}
	}

	return false
}

func (r *Response) Say(text, voice, language string) *Response {
	return r.Append(Say{Text: text, Voice: voice, Language: language})
}

func (r *Response) Play(url string) *Response {
	return r.Append(Play{URL: url})
}

func (r *Response) Redirect(url string) *Response {
	return r.Append(Redirect{URL: url, Method: "POST"})
}

func (r *Response) Hangup() *Response {
	return r.Append(Hangup{})
}

func (r *Response) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "Response"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	for _, verb := range r.verbs {
		if err := e.Encode(verb); err != nil {
			return fmt.Errorf("failed to encode %s: %w", verb.Name(), err)
		}
	}

	return e.EncodeToken(start.End())
}

// Render serializes the document with the XML declaration.
func (r *Response) Render() (string, error) {
	var buf bytes.Buffer

	buf.WriteString(xml.Header)

	if err := xml.NewEncoder(&buf).Encode(r); err != nil {
		return "", fmt.Errorf("failed to render call-control document: %w", err)
	}

	return buf.String(), nil
}

// Apology is the terminal document for calls that cannot continue.
func Apology(message string) *Response {
	return NewResponse(Say{Text: message}, Hangup{})
}
