// Package project implements change detection and event resolution for projects.
//
// Rules:
//   - stage change → projectStatusChanged; stage completed/delivered → also projectCompleted
//   - priority change → projectStatusChanged (same preference key as stage changes)
//   - budget spend crossing 80% of budget → budgetAlert to the team and the manager
//   - team members added/removed → one teamMemberAdded/teamMemberRemoved event per member
//   - due date change → projectDeadlineChanged
//   - creation → projectCreated
package project
