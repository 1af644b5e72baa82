package usercontext

// KeyAccountContext is the Locals key holding the AccountContext.
const KeyAccountContext = "ACCOUNT_CONTEXT"
