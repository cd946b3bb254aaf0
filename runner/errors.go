package runner

import (
	"fmt"

	"github.com/silfenpath/adk/errs"
)

func errTransferDenied(from, to string) error {
	return errs.New(errs.KindValidation, "", fmt.Sprintf("transfer from %q to %q is not permitted", from, to))
}

func errTransferLoop(agentName string) error {
	return errs.New(errs.KindTransferLoop, "", fmt.Sprintf("transfer loop detected at agent %q", agentName))
}
