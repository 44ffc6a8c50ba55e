package management

import (
	"fmt"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctap2"
	"github.com/dantte-lp/goctap/pinuv"
)

// bioEnrollment subcommands (CTAP 2.1 section 6.7).
const (
	bioSubEnrollBegin              = 0x01
	bioSubEnrollCaptureNextSample  = 0x02
	bioSubCancelCurrentEnrollment  = 0x03
	bioSubEnumerateEnrollments     = 0x04
	bioSubSetFriendlyName          = 0x05
	bioSubRemoveEnrollment         = 0x06
	bioSubGetFingerprintSensorInfo = 0x07
)

// authenticatorBioEnrollment request member indices (CTAP 2.1 section
// 6.7). Distinct from, and not to be confused with, the
// credentialManagement request layout in credmgmt.go: bioEnrollment
// carries a mandatory leading modality field that shifts every other
// member index up by one.
const (
	bioReqModality          = 0x01
	bioReqSubCommand        = 0x02
	bioReqSubCommandParams  = 0x03
	bioReqPinUvAuthProtocol = 0x04
	bioReqPinUvAuthParam    = 0x05
)

// modalityFingerprint is the only modality value CTAP 2.1 defines today.
const modalityFingerprint = 0x01

const (
	bioParamTemplateID           = 0x01
	bioParamTemplateFriendlyName = 0x02
	bioParamTimeoutMilliseconds  = 0x03

	bioRespModality        = 0x01
	bioRespFingerprintKind = 0x02
	bioRespMaxSamples      = 0x03
	bioRespTemplateID      = 0x04
	bioRespLastStatus      = 0x05
	bioRespRemaining       = 0x06
	bioRespTemplateInfos   = 0x07
)

// SampleStatus is the authenticator's verdict on one captured
// enrollment sample (CTAP 2.1 section 6.7, lastEnrollSampleStatus).
type SampleStatus byte

const (
	SampleGood                     SampleStatus = 0x00
	SampleTooHigh                  SampleStatus = 0x01
	SampleTooLow                   SampleStatus = 0x02
	SampleTooLeft                  SampleStatus = 0x03
	SampleTooRight                 SampleStatus = 0x04
	SampleTooFast                  SampleStatus = 0x05
	SampleTooSlow                  SampleStatus = 0x06
	SamplePoorQuality              SampleStatus = 0x07
	SampleTooSkewed                SampleStatus = 0x08
	SampleTooShort                 SampleStatus = 0x09
	SampleMergeFailure             SampleStatus = 0x0A
	SampleAlreadyExists            SampleStatus = 0x0B
	SampleNoUserActivity           SampleStatus = 0x0E
	SampleNoUserPresenceTransition SampleStatus = 0x0F
)

func (s SampleStatus) String() string {
	switch s {
	case SampleGood:
		return "Good"
	case SampleTooHigh:
		return "TooHigh"
	case SampleTooLow:
		return "TooLow"
	case SampleTooLeft:
		return "TooLeft"
	case SampleTooRight:
		return "TooRight"
	case SampleTooFast:
		return "TooFast"
	case SampleTooSlow:
		return "TooSlow"
	case SamplePoorQuality:
		return "PoorQuality"
	case SampleTooSkewed:
		return "TooSkewed"
	case SampleTooShort:
		return "TooShort"
	case SampleMergeFailure:
		return "MergeFailure"
	case SampleAlreadyExists:
		return "AlreadyExists"
	case SampleNoUserActivity:
		return "NoUserActivity"
	case SampleNoUserPresenceTransition:
		return "NoUserPresenceTransition"
	default:
		return fmt.Sprintf("SampleStatus(0x%02x)", byte(s))
	}
}

// EnrollState is the biometric enrollment state machine: Idle ->
// SentBegin -> Sampling -> (Done | Aborted).
type EnrollState uint8

const (
	EnrollIdle EnrollState = iota
	EnrollSentBegin
	EnrollSampling
	EnrollDone
	EnrollAborted
)

func (s EnrollState) String() string {
	switch s {
	case EnrollIdle:
		return "Idle"
	case EnrollSentBegin:
		return "SentBegin"
	case EnrollSampling:
		return "Sampling"
	case EnrollDone:
		return "Done"
	case EnrollAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// EnrollEvent drives EnrollState transitions.
type EnrollEvent uint8

const (
	EnrollEventBegin         EnrollEvent = iota // enrollBegin issued
	EnrollEventSampleCaptured                   // enrollBegin/captureNextSample replied, samples remain
	EnrollEventComplete                         // remainingSamples reached 0
	EnrollEventCancel                           // cancelCurrentEnrollment issued, or a sample capture errored
)

type enrollStateEvent struct {
	state EnrollState
	event EnrollEvent
}

var enrollFSMTable = map[enrollStateEvent]EnrollState{
	{EnrollIdle, EnrollEventBegin}: EnrollSentBegin,

	{EnrollSentBegin, EnrollEventSampleCaptured}: EnrollSampling,
	{EnrollSentBegin, EnrollEventComplete}:       EnrollDone,
	{EnrollSentBegin, EnrollEventCancel}:         EnrollAborted,

	{EnrollSampling, EnrollEventSampleCaptured}: EnrollSampling,
	{EnrollSampling, EnrollEventComplete}:       EnrollDone,
	{EnrollSampling, EnrollEventCancel}:         EnrollAborted,
}

// EnrollFSMResult holds the outcome of applying an event.
type EnrollFSMResult struct {
	OldState EnrollState
	NewState EnrollState
	Changed  bool
}

// ApplyEnrollEvent applies event to currentState. Events with no table
// entry leave the state unchanged.
func ApplyEnrollEvent(currentState EnrollState, event EnrollEvent) EnrollFSMResult {
	next, ok := enrollFSMTable[enrollStateEvent{currentState, event}]
	if !ok {
		return EnrollFSMResult{OldState: currentState, NewState: currentState, Changed: false}
	}
	return EnrollFSMResult{OldState: currentState, NewState: next, Changed: currentState != next}
}

// EnrollmentSample is one enrollBegin/enrollCaptureNextSample reply.
type EnrollmentSample struct {
	TemplateID       []byte
	LastStatus       SampleStatus
	RemainingSamples int
}

// TemplateInfo is one entry from enumerateEnrollments.
type TemplateInfo struct {
	TemplateID   []byte
	FriendlyName string
}

// BioEnroller drives authenticatorBioEnrollment. Every subcommand it
// exposes is authenticated.
type BioEnroller struct {
	d      *ctap2.Dispatcher
	tokens *pinuv.TokenSource
}

// NewBioEnroller returns a BioEnroller bound to a cached pin/uv token.
func NewBioEnroller(d *ctap2.Dispatcher, tokens *pinuv.TokenSource) *BioEnroller {
	return &BioEnroller{d: d, tokens: tokens}
}

func (b *BioEnroller) call(subCommand byte, params cbor.Map) (cbor.Map, error) {
	if b.tokens == nil {
		return nil, ErrNoToken
	}

	req := cbor.Map{
		{Key: cbor.Uint(bioReqModality), Value: cbor.Uint(modalityFingerprint)},
		{Key: cbor.Uint(bioReqSubCommand), Value: cbor.Uint(uint64(subCommand))},
	}
	msg := []byte{modalityFingerprint, subCommand}
	if params != nil {
		req = append(req, cbor.MapEntry{Key: cbor.Uint(bioReqSubCommandParams), Value: params})
		enc, err := cbor.Encode(params)
		if err != nil {
			return nil, fmt.Errorf("management: encode subCommandParams: %w", err)
		}
		msg = append(msg, enc...)
	}

	authParam, err := b.tokens.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("management: sign subcommand: %w", err)
	}
	req = append(req,
		cbor.MapEntry{Key: cbor.Uint(bioReqPinUvAuthProtocol), Value: cbor.Uint(uint64(b.tokens.Protocol().Number()))},
		cbor.MapEntry{Key: cbor.Uint(bioReqPinUvAuthParam), Value: cbor.Bytes(authParam)},
	)

	v, err := b.d.Call(ctap2.CmdBioEnrollment, req)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return cbor.Map{}, nil
	}
	m, ok := v.(cbor.Map)
	if !ok {
		return nil, fmt.Errorf("management: reply is not a map")
	}
	return m, nil
}

func decodeSample(m cbor.Map) EnrollmentSample {
	var s EnrollmentSample
	if v, ok := m.GetUint(bioRespTemplateID); ok {
		if b, ok := v.(cbor.Bytes); ok {
			s.TemplateID = []byte(b)
		}
	}
	if v, ok := m.GetUint(bioRespLastStatus); ok {
		s.LastStatus = SampleStatus(uintFrom(v))
	}
	if v, ok := m.GetUint(bioRespRemaining); ok {
		s.RemainingSamples = int(uintFrom(v))
	}
	return s
}

// EnrollBegin starts a new fingerprint enrollment and captures the
// first sample. timeoutMilliseconds of 0 omits the parameter.
func (b *BioEnroller) EnrollBegin(timeoutMilliseconds int) (EnrollmentSample, error) {
	var params cbor.Map
	if timeoutMilliseconds > 0 {
		params = cbor.Map{{Key: cbor.Uint(bioParamTimeoutMilliseconds), Value: cbor.Uint(uint64(timeoutMilliseconds))}}
	}
	m, err := b.call(bioSubEnrollBegin, params)
	if err != nil {
		return EnrollmentSample{}, err
	}
	return decodeSample(m), nil
}

// CaptureNextSample captures the next sample for an in-progress
// enrollment.
func (b *BioEnroller) CaptureNextSample(templateID []byte, timeoutMilliseconds int) (EnrollmentSample, error) {
	params := cbor.Map{{Key: cbor.Uint(bioParamTemplateID), Value: cbor.Bytes(templateID)}}
	if timeoutMilliseconds > 0 {
		params = append(params, cbor.MapEntry{Key: cbor.Uint(bioParamTimeoutMilliseconds), Value: cbor.Uint(uint64(timeoutMilliseconds))})
	}
	m, err := b.call(bioSubEnrollCaptureNextSample, params)
	if err != nil {
		return EnrollmentSample{}, err
	}
	return decodeSample(m), nil
}

// CancelCurrentEnrollment aborts an in-progress enrollment.
func (b *BioEnroller) CancelCurrentEnrollment() error {
	_, err := b.call(bioSubCancelCurrentEnrollment, nil)
	return err
}

// EnumerateEnrollments lists every stored fingerprint template.
func (b *BioEnroller) EnumerateEnrollments() ([]TemplateInfo, error) {
	m, err := b.call(bioSubEnumerateEnrollments, nil)
	if err != nil {
		return nil, err
	}
	v, ok := m.GetUint(bioRespTemplateInfos)
	if !ok {
		return nil, nil
	}
	arr, ok := v.(cbor.Array)
	if !ok {
		return nil, fmt.Errorf("management: templateInfos is not an array")
	}
	infos := make([]TemplateInfo, 0, len(arr))
	for _, e := range arr {
		em, ok := e.(cbor.Map)
		if !ok {
			continue
		}
		var ti TemplateInfo
		if idv, ok := em.GetUint(bioParamTemplateID); ok {
			if b, ok := idv.(cbor.Bytes); ok {
				ti.TemplateID = []byte(b)
			}
		}
		if nv, ok := em.GetUint(bioParamTemplateFriendlyName); ok {
			if s, ok := nv.(cbor.Text); ok {
				ti.FriendlyName = string(s)
			}
		}
		infos = append(infos, ti)
	}
	return infos, nil
}

// SetFriendlyName renames a stored fingerprint template.
func (b *BioEnroller) SetFriendlyName(templateID []byte, friendlyName string) error {
	_, err := b.call(bioSubSetFriendlyName, cbor.Map{
		{Key: cbor.Uint(bioParamTemplateID), Value: cbor.Bytes(templateID)},
		{Key: cbor.Uint(bioParamTemplateFriendlyName), Value: cbor.Text(friendlyName)},
	})
	return err
}

// RemoveEnrollment deletes a stored fingerprint template.
func (b *BioEnroller) RemoveEnrollment(templateID []byte) error {
	_, err := b.call(bioSubRemoveEnrollment, cbor.Map{
		{Key: cbor.Uint(bioParamTemplateID), Value: cbor.Bytes(templateID)},
	})
	return err
}
