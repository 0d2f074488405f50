// Package svm holds kernel and linear support vector models: training
// (online NORMA-style kernel updates and averaged linear SGD), assembly of
// trainer output into persisted models, and scoring of single models and
// partitioned ensembles.
//
// A partitioned training run produces one member per partition. Members are
// identified by MemberID, a structured (ensemble, index) pair; scoring an
// ensemble yields one prediction per member followed by the synthetic "avg"
// prediction.
package svm
