// Package task implements change detection and event resolution for tasks.
//
// Every task event goes to the task's current assignee. A task without an
// assignee produces no events at all.
package task
