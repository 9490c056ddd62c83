// Command subtide is the subtitle pipeline CLI. It manages the job queue,
// runs the transcription and translation workflow, stores provider
// credentials, and exports finished subtitles.
package main
