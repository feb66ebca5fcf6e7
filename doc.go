// Moderation decision engine for user-submitted content.
//
// This package (`github.com/inkhaven-social/warden`) evaluates content
// submissions (stories, chapters, whispers, image uploads) before
// publication. Text detectors (profanity, spam, hate speech), a URL
// reputation checker, and an NSFW image classifier each produce
// independent signals; the engine folds them into a single allow/block
// decision under the current moderation policy, then persists the
// decision's side effects: content flags, auto-reports for human
// review, and counters.
//
// Separate packages handle account-level enforcement (suspensions and
// shadowbans), behavioral anomaly scanning, and read-side visibility
// filtering. See `cmd/wardend` for a daemon built on this package.
package warden
