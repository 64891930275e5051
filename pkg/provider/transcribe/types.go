package transcribe

// Request describes one transcription attempt.
type Request struct {
	// FilePath is the local path of the audio file to upload.
	FilePath string

	// Language is an ISO language hint, or "auto" for provider-side
	// detection. Empty is treated as "auto".
	Language string

	// Diarize asks the provider to label which speaker said which segment.
	Diarize bool

	// WordTimestamps asks for word-level start/end times.
	WordTimestamps bool

	// TagAudioEvents asks the provider to mark non-speech events
	// (laughter, applause, …) in the result.
	TagAudioEvents bool
}

// Result is the normalized outcome of a successful transcription call.
// It is immutable once returned and never persisted.
type Result struct {
	// Text is the recognized speech. Empty when the audio contained no
	// detectable speech; callers must treat that as a distinct condition.
	Text string

	// Language is the detected language code, or "unknown".
	Language string

	// Confidence is the provider's language/recognition confidence in [0, 1].
	Confidence float64

	// Speakers groups the transcript by speaker when diarization was
	// requested. Nil otherwise.
	Speakers []Speaker

	// AudioEvents lists detected non-speech events when tagging was
	// requested. Nil otherwise.
	AudioEvents []AudioEvent
}

// Speaker is one diarized participant with their ordered segments.
type Speaker struct {
	// ID is the provider-assigned speaker label (e.g., "speaker_0").
	ID string

	// Segments are the speaker's utterances in temporal order.
	Segments []Segment
}

// Segment is a contiguous span of speech attributed to one speaker.
type Segment struct {
	// Text is the segment's transcribed content.
	Text string

	// Start and End are offsets from the beginning of the audio, in seconds.
	Start float64
	End   float64
}

// AudioEvent is a non-speech occurrence detected in the audio.
type AudioEvent struct {
	// Type identifies the event class (e.g., "laughter").
	Type string

	// Start and End are offsets from the beginning of the audio, in seconds.
	Start float64
	End   float64

	// Description is an optional human-readable note from the provider.
	Description string
}
