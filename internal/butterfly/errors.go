package butterfly

import "github.com/imadgeboyega/heartwing-backend/internal/common/apperrors"

var (
	ErrSelfMatch           = apperrors.Validation("cannot create a match with yourself")
	ErrInvalidMember       = apperrors.Validation("member id must be positive")
	ErrInvalidTier         = apperrors.Validation("unknown butterfly tier")
	ErrInvalidTrigger      = apperrors.Validation("unknown reward trigger")
	ErrInvalidMessageType  = apperrors.Validation("unknown message type")
	ErrInvalidMilestone    = apperrors.Validation("unknown milestone kind")
	ErrInvalidStatus       = apperrors.Validation("invalid match status transition")
	ErrHeartRateOutOfRange = apperrors.Validation("heart rate must be between 40 and 200 BPM")
	ErrMalformedSamples    = apperrors.Validation("malformed heart sync samples")
	ErrMatchNotActive      = apperrors.Validation("match is not active")
	ErrNotParticipant      = apperrors.NotFound("member is not a participant in this match")
	ErrNoLandedReward      = apperrors.NotFound("no uncollected butterfly of this tier in the match")
	ErrAlreadyAchieved     = apperrors.New(apperrors.CodeAlreadyAchieved, "milestone already achieved")
)
