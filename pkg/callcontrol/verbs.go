// Package callcontrol builds and parses the XML documents returned to the telephony platform.
package callcontrol

import (
	"encoding/xml"
	"strconv"
)

// Verb is an instruction inside a call-control document.
type Verb interface {
	Name() string
}

type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Loop     int      `xml:"loop,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

func (Say) Name() string { return "Say" }

type Play struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (Play) Name() string { return "Play" }

type Pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

func (Pause) Name() string { return "Pause" }

// Gather collects digits or speech, nesting the prompt verbs it plays while listening.
type Gather struct {
	Input               string
	Action              string
	Method              string
	Timeout             int
	NumDigits           int
	FinishOnKey         string
	Hints               string
	Language            string
	ActionOnEmptyResult bool
	Prompts             []Verb
}

func (Gather) Name() string { return "Gather" }

func (g Gather) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "Gather"}}
	start.Attr = appendAttr(start.Attr, "input", g.Input)
	start.Attr = appendAttr(start.Attr, "action", g.Action)
	start.Attr = appendAttr(start.Attr, "method", g.Method)
	start.Attr = appendIntAttr(start.Attr, "timeout", g.Timeout)
	start.Attr = appendIntAttr(start.Attr, "numDigits", g.NumDigits)
	start.Attr = appendAttr(start.Attr, "finishOnKey", g.FinishOnKey)
	start.Attr = appendAttr(start.Attr, "hints", g.Hints)
	start.Attr = appendAttr(start.Attr, "language", g.Language)

	if g.ActionOnEmptyResult {
		start.Attr = appendAttr(start.Attr, "actionOnEmptyResult", "true")
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}

	for _, prompt := range g.Prompts {
		if err := e.Encode(prompt); err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}

type Number struct {
	XMLName xml.Name `xml:"Number"`
	Value   string   `xml:",chardata"`
}

type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr,omitempty"`
	Method   string   `xml:"method,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Record   string   `xml:"record,attr,omitempty"`
	Number   Number
}

func (Dial) Name() string { return "Dial" }

type Record struct {
	XMLName            xml.Name `xml:"Record"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	FinishOnKey        string   `xml:"finishOnKey,attr,omitempty"`
	PlayBeep           string   `xml:"playBeep,attr,omitempty"`
	Transcribe         string   `xml:"transcribe,attr,omitempty"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

func (Record) Name() string { return "Record" }

type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

func (Redirect) Name() string { return "Redirect" }

type Parameter struct {
	XMLName xml.Name `xml:"Parameter"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type Stream struct {
	XMLName    xml.Name `xml:"Stream"`
	URL        string   `xml:"url,attr"`
	Parameters []Parameter
}

// Connect hands the call's media stream to an external agent.
type Connect struct {
	XMLName xml.Name `xml:"Connect"`
	Action  string   `xml:"action,attr,omitempty"`
	Stream  Stream
}

func (Connect) Name() string { return "Connect" }

type Enqueue struct {
	XMLName xml.Name `xml:"Enqueue"`
	Action  string   `xml:"action,attr,omitempty"`
	WaitURL string   `xml:"waitUrl,attr,omitempty"`
	Queue   string   `xml:",chardata"`
}

func (Enqueue) Name() string { return "Enqueue" }

type Sms struct {
	XMLName xml.Name `xml:"Sms"`
	To      string   `xml:"to,attr,omitempty"`
	From    string   `xml:"from,attr,omitempty"`
	Body    string   `xml:",chardata"`
}

func (Sms) Name() string { return "Sms" }

type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func (Hangup) Name() string { return "Hangup" }

func appendAttr(attrs []xml.Attr, name, value string) []xml.Attr {
	if value == "" {
		return attrs
	}

	return append(attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func appendIntAttr(attrs []xml.Attr, name string, value int) []xml.Attr {
	if value == 0 {
		return attrs
	}

	return appendAttr(attrs, name, strconv.Itoa(value))
}
