package warden

import (
	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/countstore"
	"github.com/inkhaven-social/warden/enforcement"
	"github.com/inkhaven-social/warden/engine"
	"github.com/inkhaven-social/warden/policy"
	"github.com/inkhaven-social/warden/visibility"
)

type Engine = engine.Engine
type Decision = engine.Decision
type BlockedError = engine.BlockedError
type Report = engine.Report
type ReportSink = engine.ReportSink

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Item = content.Item
type Ref = content.Ref
type ImageRef = content.ImageRef

type PolicyStore = policy.Store
type PolicySnapshot = policy.Snapshot
type PolicyUpdate = policy.Update
type Sensitivity = policy.Sensitivity

type EnforcementService = enforcement.Service
type EnforcementStatus = enforcement.Status

type VisibilityFilter = visibility.Filter
type Viewer = visibility.Viewer
type Annotated = visibility.Annotated
type NSFWPref = visibility.NSFWPref

var (
	ReportReasonSpam       = engine.ReportReasonSpam
	ReportReasonHateSpeech = engine.ReportReasonHateSpeech
	ReportReasonSexual     = engine.ReportReasonSexual
	ReportReasonViolation  = engine.ReportReasonViolation
	ReportReasonOther      = engine.ReportReasonOther

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour

	SensitivityStrict     = policy.SensitivityStrict
	SensitivityModerate   = policy.SensitivityModerate
	SensitivityPermissive = policy.SensitivityPermissive

	PrefShowAll  = visibility.PrefShowAll
	PrefBlurNSFW = visibility.PrefBlurNSFW
	PrefHideNSFW = visibility.PrefHideNSFW
)
