// Package agui maps agent run events onto the AG-UI protocol.
//
// AG-UI (Agent-User Interface) is an open, event-based protocol that
// standardizes how agents connect to user-facing applications. This package
// converts the runtime's event stream and conversation turns into AG-UI
// events and messages; transport (SSE writers, HTTP handlers) is left to
// the caller and the AG-UI SDK.
//
// Create one Mapper per run and feed it the run's event channel:
//
//	mapper := agui.NewMapper(threadID, runID)
//	for e := range eventCh {
//	    if aguiEvent := mapper.MapEvent(e); aguiEvent != nil {
//	        writeEvent(aguiEvent)
//	    }
//	}
//
// The Mapper is not safe for concurrent use; give each run its own.
package agui
