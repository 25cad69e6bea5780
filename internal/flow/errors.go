package flow

import "errors"

var (
	// ErrNotAuthenticated indicates an action attempted without a logged-in account.
	ErrNotAuthenticated = errors.New("flow: please login first")
	// ErrInvalidInput indicates missing or malformed form fields.
	ErrInvalidInput = errors.New("flow: invalid input")
	// ErrPostNotFound indicates a vote target that is not in the current list.
	ErrPostNotFound = errors.New("flow: post not found")
	// ErrAlreadyVoted indicates the account already appears among the post's active votes.
	ErrAlreadyVoted = errors.New("flow: you have already voted on this post")
	// ErrVoteInProgress indicates a vote on the same post is still awaiting the signer.
	ErrVoteInProgress = errors.New("flow: vote already in progress")
	// ErrActionInProgress indicates the same form is still awaiting the signer.
	ErrActionInProgress = errors.New("flow: action already in progress")
	// ErrTimedOut indicates the signer did not answer within the timeout window. The
	// request itself may still complete later.
	ErrTimedOut = errors.New("flow: request timed out")
)
