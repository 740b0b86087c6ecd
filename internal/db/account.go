package db

import "gorm.io/gorm"

// DeleteUserData removes every analysis row and the ledger row for a user in
// one transaction. It returns the number of analysis rows deleted.
func DeleteUserData(db *gorm.DB, userID string) (int64, error) {
	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&AnalysisRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("user_id = ?", userID).Delete(&UsageLedger{}).Error
	})
	return deleted, err
}
