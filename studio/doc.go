// Package studio is the interactive front end of qwen-edit.
//
// A [Session] holds the user's choices: up to three input images, the
// prompts, the API key and the last result. Generate validates those choices
// and hands the edit to a single worker goroutine; the worker never touches
// the session and reports back through [Session.Events]. The foreground loop
// passes each result to [Session.Apply], which is the only place the last
// output is stored.
//
// [Console] drives a Session from a terminal and draws previews with ANSI
// half blocks.
package studio
