package api

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

func validateSolveBody(body *solveBody) error {
	if body.Request == nil {
		return fmt.Errorf("request is required")
	}
	if body.SolverData == nil {
		return fmt.Errorf("solverData is required")
	}
	if body.RunID != "" {
		if _, err := uuid.Parse(body.RunID); err != nil {
			return fmt.Errorf("runId must be a UUID: %v", err)
		}
	}
	if body.CallbackURL != "" {
		u, err := url.Parse(body.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
	}
	if body.CallbackSecret != "" && body.CallbackURL == "" {
		return fmt.Errorf("callbackSecret requires callbackUrl")
	}
	return nil
}
