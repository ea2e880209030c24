// Package live implements a realtime voice conversation pipeline against the
// Gemini Live API: microphone frames are encoded and streamed out while
// inbound audio is scheduled for gapless playback, transcriptions are
// aggregated into per-turn entries, and the feedback tool contract is
// honored by acknowledging every invocation.
//
// A Conversation owns the full pipeline for one session; Manager enforces
// that at most one is active. Session is the transport layer and can be used
// directly by callers that bring their own audio devices.
package live
