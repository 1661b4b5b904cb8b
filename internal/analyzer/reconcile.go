package analyzer

import (
	"pydiatra/internal/models"
)

// handlerTags are the tags collected from one except clause.
type handlerTags struct {
	Line int
	Bare bool
	Tags []models.Tag
}

func moduleArg(t models.Tag) string {
	if len(t.Args) == 0 {
		return ""
	}
	s, _ := t.Args[0].(string)
	return s
}

// reconcileTry merges the tags of a try statement's body and handlers.
//
// Hardcoded errno markers raised inside a handler gain a public
// counterpart naming the errno constant. A bare handler that does not
// re-raise is reported. Obsolete PIL imports are held back and dropped
// when the other branch imports the same module from the PIL package,
// since the pair is then a compatibility fallback.
func reconcileTry(path string, errno map[int]string, body []models.Tag, handlers []handlerTags) []models.Tag {
	var out, pendingBody, pendingHandlers []models.Tag
	bodyModern := make(map[string]bool)
	handlerModern := make(map[string]bool)

	for _, t := range body {
		switch t.Kind {
		case kindObsoletePIL:
			pendingBody = append(pendingBody, t)
			continue
		case kindModernPIL:
			bodyModern[moduleArg(t)] = true
		}
		out = append(out, t)
	}

	for _, h := range handlers {
		reraised := false
		for _, t := range h.Tags {
			switch t.Kind {
			case kindObsoletePIL:
				pendingHandlers = append(pendingHandlers, t)
				continue
			case kindModernPIL:
				handlerModern[moduleArg(t)] = true
			case kindHardcodedErrno:
				if n, ok := t.Args[0].(int); ok {
					if name, ok := errno[n]; ok {
						out = append(out, models.MustTag(path, t.Line, "hardcoded-errno-value", n, "->", "errno."+name))
					}
				}
			case kindReraise:
				reraised = true
			}
			out = append(out, t)
		}
		if h.Bare && !reraised {
			out = append(out, models.MustTag(path, h.Line, "bare-except"))
		}
	}

	for _, t := range pendingBody {
		if !handlerModern[moduleArg(t)] {
			out = append(out, t)
		}
	}
	for _, t := range pendingHandlers {
		if !bodyModern[moduleArg(t)] {
			out = append(out, t)
		}
	}
	return out
}
