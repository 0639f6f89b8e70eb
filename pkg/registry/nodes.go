package registry

import (
	"github.com/dukex/ivrflow/pkg/nodes/aiassistant"
	"github.com/dukex/ivrflow/pkg/nodes/apicall"
	"github.com/dukex/ivrflow/pkg/nodes/conditional"
	"github.com/dukex/ivrflow/pkg/nodes/end"
	"github.com/dukex/ivrflow/pkg/nodes/greeting"
	"github.com/dukex/ivrflow/pkg/nodes/input"
	"github.com/dukex/ivrflow/pkg/nodes/queue"
	"github.com/dukex/ivrflow/pkg/nodes/repeat"
	"github.com/dukex/ivrflow/pkg/nodes/setvariable"
	"github.com/dukex/ivrflow/pkg/nodes/sms"
	"github.com/dukex/ivrflow/pkg/nodes/transfer"
	"github.com/dukex/ivrflow/pkg/nodes/voicemail"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	r.RegisterNode(greeting.NewGreetingNodeFactory())
	r.RegisterNode(greeting.NewAudioNodeFactory())
	r.RegisterNode(input.NewInputNodeFactory())
	r.RegisterNode(conditional.NewConditionalNodeFactory())
	r.RegisterNode(voicemail.NewVoicemailNodeFactory())
	r.RegisterNode(transfer.NewTransferNodeFactory())
	r.RegisterNode(repeat.NewRepeatNodeFactory())
	r.RegisterNode(end.NewEndNodeFactory())

	// Extended nodes
	r.RegisterNode(aiassistant.NewAIAssistantNodeFactory())
	r.RegisterNode(queue.NewQueueNodeFactory())
	r.RegisterNode(sms.NewSMSNodeFactory())
	r.RegisterNode(setvariable.NewSetVariableNodeFactory())
	r.RegisterNode(apicall.NewAPICallNodeFactory())
}
