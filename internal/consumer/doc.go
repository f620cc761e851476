// Package consumer runs the delivery loop: receive a batch from the queue,
// hand each message to the pipeline, then acknowledge or request redelivery
// per message based on how processing ended.
package consumer
