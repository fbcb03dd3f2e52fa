package adminrpc

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"dynamokv/internal/clock"
	"dynamokv/internal/cluster"
	"dynamokv/internal/message"
	"dynamokv/internal/node"
	"dynamokv/internal/quorum"
	"dynamokv/internal/sim"
	"dynamokv/internal/storage"
)

// Field names shared by requests and responses.
const (
	fieldID        = "id"
	fieldPeer      = "peer"
	fieldClient    = "client"
	fieldNode      = "node"
	fieldKey       = "key"
	fieldValue     = "value"
	fieldVersion   = "version"
	fieldDelay     = "delay"
	fieldRequestID = "requestId"
	fieldTicket    = "ticket"
	fieldKind      = "kind"
	fieldStatus    = "status"
	fieldTimedOut  = "timedOut"
	fieldItems     = "items"
	fieldNodes     = "nodes"
	fieldState     = "state"
	fieldCrashed   = "crashed"
	fieldJoining   = "joining"
	fieldRecover   = "recovering"
	fieldMembers   = "members"
	fieldKeys      = "keys"
)

func intField(s *structpb.Struct, name string) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("missing field %q", name)
	}
	return toInt(v, name)
}

func optionalInt(s *structpb.Struct, name string, def int) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return def, nil
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return def, nil
	}
	return toInt(v, name)
}

func toInt(v *structpb.Value, name string) (int, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", name)
	}
	if n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("field %q is not an integer", name)
	}
	return int(n.NumberValue), nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("missing field %q", name)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", name)
	}
	return str.StringValue, nil
}

func durationField(s *structpb.Struct, name string) (time.Duration, error) {
	str, err := stringField(s, name)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", name, err)
	}
	return d, nil
}

func encodeValue(vv *storage.VersionedValue) any {
	if vv == nil {
		return nil
	}
	var value any
	if vv.Value != nil {
		value = *vv.Value
	}
	return map[string]any{
		fieldValue:   value,
		fieldVersion: int64(vv.Version),
	}
}

func decodeValue(v *structpb.Value) (*storage.VersionedValue, error) {
	s := v.GetStructValue()
	if s == nil {
		return nil, nil
	}
	version, err := intField(s, fieldVersion)
	if err != nil {
		return nil, err
	}
	vv := storage.VersionedValue{Version: clock.Version(version)}
	if str, ok := s.GetFields()[fieldValue].GetKind().(*structpb.Value_StringValue); ok {
		value := str.StringValue
		vv.Value = &value
	}
	return &vv, nil
}

func encodeFeedback(fb message.Feedback) map[string]any {
	return map[string]any{
		fieldRequestID: int64(fb.RequestID),
		fieldTicket:    int64(fb.Ticket),
		fieldNode:      int(fb.Node),
		fieldKind:      fb.Kind.String(),
		fieldStatus:    fb.Status.String(),
		fieldTimedOut:  fb.TimedOut,
		fieldValue:     encodeValue(fb.Value),
	}
}

func decodeFeedback(s *structpb.Struct) (message.Feedback, error) {
	var fb message.Feedback

	reqID, err := intField(s, fieldRequestID)
	if err != nil {
		return fb, err
	}
	ticket, err := intField(s, fieldTicket)
	if err != nil {
		return fb, err
	}
	id, err := intField(s, fieldNode)
	if err != nil {
		return fb, err
	}
	kindStr, err := stringField(s, fieldKind)
	if err != nil {
		return fb, err
	}
	kind, err := quorum.ParseKind(kindStr)
	if err != nil {
		return fb, err
	}
	statusStr, err := stringField(s, fieldStatus)
	if err != nil {
		return fb, err
	}
	st, err := message.ParseStatus(statusStr)
	if err != nil {
		return fb, err
	}
	value, err := decodeValue(s.GetFields()[fieldValue])
	if err != nil {
		return fb, err
	}

	return message.Feedback{
		RequestID: quorum.RequestID(reqID),
		Ticket:    uint64(ticket),
		Node:      cluster.NodeID(id),
		Kind:      kind,
		Status:    st,
		Value:     value,
		TimedOut:  s.GetFields()[fieldTimedOut].GetBoolValue(),
	}, nil
}

func encodeSnapshot(snap storage.Snapshot) map[string]any {
	items := make([]any, 0, len(snap))
	for _, e := range snap {
		vv := e.Value
		item := encodeValue(&vv).(map[string]any)
		item[fieldKey] = int(e.Key)
		items = append(items, item)
	}
	return map[string]any{fieldItems: items}
}

func decodeSnapshot(s *structpb.Struct) (storage.Snapshot, error) {
	list := s.GetFields()[fieldItems].GetListValue().GetValues()
	snap := make(storage.Snapshot, 0, len(list))
	for _, v := range list {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("store item is not an object")
		}
		key, err := intField(item, fieldKey)
		if err != nil {
			return nil, err
		}
		vv, err := decodeValue(v)
		if err != nil {
			return nil, err
		}
		snap = append(snap, storage.Entry{Key: cluster.Key(key), Value: *vv})
	}
	return snap, nil
}

func encodeStatus(status []sim.NodeStatus) map[string]any {
	nodes := make([]any, 0, len(status))
	for _, st := range status {
		members := make([]any, 0, len(st.Members))
		for _, m := range st.Members {
			members = append(members, int(m))
		}
		nodes = append(nodes, map[string]any{
			fieldID:      int(st.ID),
			fieldState:   st.State.String(),
			fieldCrashed: st.Crashed,
			fieldJoining: st.Joining,
			fieldRecover: st.Recovering,
			fieldMembers: members,
			fieldKeys:    st.Keys,
			fieldDelay:   st.Delay.String(),
		})
	}
	return map[string]any{fieldNodes: nodes}
}

func decodeStatus(s *structpb.Struct) ([]sim.NodeStatus, error) {
	list := s.GetFields()[fieldNodes].GetListValue().GetValues()
	out := make([]sim.NodeStatus, 0, len(list))
	for _, v := range list {
		n := v.GetStructValue()
		if n == nil {
			return nil, fmt.Errorf("node status is not an object")
		}
		id, err := intField(n, fieldID)
		if err != nil {
			return nil, err
		}
		stateStr, err := stringField(n, fieldState)
		if err != nil {
			return nil, err
		}
		state, err := node.ParseState(stateStr)
		if err != nil {
			return nil, err
		}
		keys, err := intField(n, fieldKeys)
		if err != nil {
			return nil, err
		}
		delay, err := durationField(n, fieldDelay)
		if err != nil {
			return nil, err
		}
		var members []cluster.NodeID
		for _, m := range n.GetFields()[fieldMembers].GetListValue().GetValues() {
			mid, err := toInt(m, fieldMembers)
			if err != nil {
				return nil, err
			}
			members = append(members, cluster.NodeID(mid))
		}

		fields := n.GetFields()
		out = append(out, sim.NodeStatus{
			ID:         cluster.NodeID(id),
			State:      state,
			Crashed:    fields[fieldCrashed].GetBoolValue(),
			Joining:    fields[fieldJoining].GetBoolValue(),
			Recovering: fields[fieldRecover].GetBoolValue(),
			Members:    members,
			Keys:       keys,
			Delay:      delay,
		})
	}
	return out, nil
}
