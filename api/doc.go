// Package api holds the gin handlers of the transcription service:
// transcription (plus its chat-shaped alias), the audio debug inspection
// endpoint, the model listing and cache administration.
package api
