// Package core defines the shared data model and contracts of the DialMesh
// framework: contacts, campaigns, call sessions, conversation state,
// telephony events, outcome taxonomy and the error sentinels used across
// component boundaries.
//
// The package is intentionally dependency-light so every other package can
// import it without cycles. Behavioral components (scheduler, session
// manager, dialog machine, retry engine) live in their own packages and
// communicate exclusively through the types declared here.
package core
