package errors

// Code classifies an Error. Transports map codes to their own status values.
type Code string

const (
	ErrBadRequest           Code = "bad-request"
	ErrCommunication        Code = "communication"
	ErrForbidden            Code = "forbidden"
	ErrInsufficientResource Code = "insufficient-resource"
	ErrInternal             Code = "internal"
	ErrInvalidState         Code = "invalid-state"
	ErrNotFound             Code = "not-found"
	ErrRulesViolation       Code = "rules-violation"
	ErrUnexpected           Code = "unexpected"
)

// Kind narrows down a Code.
type Kind string

const (
	// KindAttackerNotReady is used when a minion that is exhausted or already
	// attacked this turn is ordered to attack.
	KindAttackerNotReady Kind = "attacker-not-ready"
	KindBoardFull        Kind = "board-full"
	KindCardNotFound     Kind = "card-not-found"
	// KindClaimLost is used when a waiting match was paired by another joiner
	// between lookup and claim.
	KindClaimLost     Kind = "claim-lost"
	KindDB            Kind = "db"
	KindDeckNotFound  Kind = "deck-not-found"
	KindDeckNotOwned  Kind = "deck-not-owned"
	KindDecodeJSON    Kind = "decode-json"
	KindEncodeJSON    Kind = "encode-json"
	KindInvalidConfig Kind = "invalid-config"
	// KindInvalidPosition is used when a minion should be summoned outside the
	// current board bounds.
	KindInvalidPosition    Kind = "invalid-position"
	KindMatchNotFound      Kind = "match-not-found"
	KindMatchNotInProgress Kind = "match-not-in-progress"
	KindMinionNotFound     Kind = "minion-not-found"
	KindMissingIdentity    Kind = "missing-identity"
	KindNotEnoughMana      Kind = "not-enough-mana"
	KindNotParticipant     Kind = "not-participant"
	KindNotYourTurn        Kind = "not-your-turn"
	KindStorage            Kind = "storage"
	// KindTargetRequired is used when a damaging spell is cast without a target.
	KindTargetRequired Kind = "target-required"
	// KindTauntBlocks is used when the hero is targeted while the opponent
	// controls a minion with taunt.
	KindTauntBlocks     Kind = "taunt-blocks"
	KindUnplayableCard  Kind = "unplayable-card"
	KindUnknownMode     Kind = "unknown-mode"
	KindHandCardMissing Kind = "hand-card-missing"
)
