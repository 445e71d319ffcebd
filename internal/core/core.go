/*
Core wires the runtime context shared by every trading component.

# Module
  - clock: wall or simulated time source
  - trading log: structured record stream of order/risk activity

# Consumers
 1. risk control: current time for the flood-control window, check records
 2. order pipeline: intent and confirmation trading records
 3. entrypoint: lifecycle of the shared collaborators
*/
package core
