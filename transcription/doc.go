// Package transcription turns one request into text.
//
// Request.ExtractAudio finds the encoded clip in a request body. Pipeline
// validates it, stages it in a scratch file, normalizes it, and runs it on
// an engine from the engine cache. Scratch files are removed on every exit
// path.
//
//	p := transcription.NewPipeline(transcription.Deps{
//		Gatekeeper: gate,
//		Scratch:    store,
//		Normalizer: norm,
//		Cache:      cache,
//	}, transcription.Options{DefaultModel: "whisper-1"})
//	out, err := p.Transcribe(ctx, &req)
package transcription
