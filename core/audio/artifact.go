package audio

// CodecParams describes the target encoding for a transcoded artifact.
type CodecParams struct {
	// Bitrate is the target bitrate in encoder notation, e.g. "32k".
	Bitrate string
	// SampleRate is the target sample rate in Hz.
	SampleRate int
	// Container is the target container/extension, e.g. "ogg".
	Container string
}

// DefaultVoiceCodec returns the codec parameters used for outbound voice
// audio: Opus in an Ogg container tuned for speech.
func DefaultVoiceCodec() CodecParams {
	return CodecParams{Bitrate: "32k", SampleRate: 24000, Container: "ogg"}
}

type ArtifactState string

const (
	ArtifactPending    ArtifactState = "pending"
	ArtifactConverting ArtifactState = "converting"
	ArtifactReady      ArtifactState = "ready"
	ArtifactFailed     ArtifactState = "failed"
)

// Artifact is a transcoded audio file together with its lifecycle state.
// Ready and Failed are terminal: an artifact never transitions back to
// Pending.
type Artifact struct {
	SourcePath string
	TargetPath string
	Codec      CodecParams
	State      ArtifactState

	// Ephemeral marks artifacts whose target file is owned by the
	// component that created it and must be removed after consumption.
	Ephemeral bool
}
