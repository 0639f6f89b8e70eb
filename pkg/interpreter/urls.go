package interpreter

import (
	"net/url"
	"strconv"
	"strings"
)

// URLs builds the continuation and enter callbacks:
//
//	{base}/voice/{workflowID}/nodes/{nodeID}/continue
//	{base}/voice/{workflowID}/nodes/{nodeID}/enter
type URLs struct {
	base string
}

func NewURLs(base string) URLs {
	return URLs{base: strings.TrimRight(base, "/")}
}

func (u URLs) Continue(workflowID, nodeID string) string {
	return u.node(workflowID, nodeID) + "/continue"
}

func (u URLs) Enter(workflowID, nodeID string) string {
	return u.node(workflowID, nodeID) + "/enter"
}

func (u URLs) node(workflowID, nodeID string) string {
	return u.base + "/voice/" + url.PathEscape(workflowID) + "/nodes/" + url.PathEscape(nodeID)
}

// SequenceParam carries the step counter on callback urls so a genuinely new callback never
// looks like a retried delivery of the previous one.
const SequenceParam = "seq"

type sequenced struct {
	urls URLs
	seq  int
}

func (s sequenced) Continue(workflowID, nodeID string) string {
	return s.urls.Continue(workflowID, nodeID) + s.query()
}

func (s sequenced) Enter(workflowID, nodeID string) string {
	return s.urls.Enter(workflowID, nodeID) + s.query()
}

func (s sequenced) query() string {
	return "?" + SequenceParam + "=" + strconv.Itoa(s.seq)
}
